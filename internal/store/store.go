// Package store persists guest identities and completed matches. Two
// implementations exist: Postgres for deployments and an in-memory store for
// tests and database-less development runs.
package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
	"unicode"
)

var (
	// ErrNotFound means no guest or match matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken means the requested username belongs to another guest.
	ErrUsernameTaken = errors.New("username already taken")
)

// Guest is a persistent player identity, created on first register and
// restored across reconnects by token.
type Guest struct {
	ID          string
	DisplayName string
	Username    string // empty until claimed; globally unique when set
	Token       string
	CreatedAt   time.Time
}

// Match is an immutable record of one completed game.
type Match struct {
	ID           string
	GoldPlayerID string
	RedPlayerID  string
	WinnerID     string
	WinType      string
	PointsWon    int
	CreatedAt    time.Time
	CompletedAt  time.Time
}

// RosterEntry is one row of the leaderboard projection.
type RosterEntry struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
}

// Store is the persistence interface the dispatcher depends on.
type Store interface {
	// CreateGuest mints a fresh guest with a generated display name and
	// auth token.
	CreateGuest(ctx context.Context) (*Guest, error)
	// GuestByToken restores a session; ErrNotFound when the token is
	// unknown.
	GuestByToken(ctx context.Context, token string) (*Guest, error)
	// GuestByID looks a guest up by id.
	GuestByID(ctx context.Context, id string) (*Guest, error)
	// ClaimUsername sets the guest's unique username (and display name).
	// ErrUsernameTaken when another guest holds it.
	ClaimUsername(ctx context.Context, id, username string) error
	// RecordMatch appends a completed match. Records are never updated.
	RecordMatch(ctx context.Context, m *Match) error
	// Roster projects wins and losses for every guest with a username.
	Roster(ctx context.Context) ([]RosterEntry, error)
	Close() error
}

// ValidateUsername enforces the claim rules: 3-20 printable characters with
// no spaces.
func ValidateUsername(username string) error {
	runes := []rune(username)
	if len(runes) < 3 || len(runes) > 20 {
		return fmt.Errorf("username must be 3-20 characters")
	}
	for _, r := range runes {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("username contains invalid characters")
		}
	}
	return nil
}

// newToken returns a 32-byte URL-safe random secret.
func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// newDisplayName returns "Guest-" plus a short random suffix.
func newDisplayName() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return "Guest-" + base64.RawURLEncoding.EncodeToString(buf)
}
