package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a map-backed Store for tests and database-less runs. It applies
// the same uniqueness rules as the Postgres schema.
type Memory struct {
	mu      sync.RWMutex
	guests  map[string]*Guest // by id
	byToken map[string]string
	matches []*Match
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		guests:  make(map[string]*Guest),
		byToken: make(map[string]string),
	}
}

func (s *Memory) CreateGuest(ctx context.Context) (*Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &Guest{
		ID:          uuid.NewString(),
		DisplayName: newDisplayName(),
		Token:       newToken(),
		CreatedAt:   time.Now().UTC(),
	}
	s.guests[g.ID] = g
	s.byToken[g.Token] = g.ID
	return copyGuest(g), nil
}

func (s *Memory) GuestByToken(ctx context.Context, token string) (*Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGuest(s.guests[id]), nil
}

func (s *Memory) GuestByID(ctx context.Context, id string) (*Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGuest(g), nil
}

func (s *Memory) ClaimUsername(ctx context.Context, id, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guests[id]
	if !ok {
		return ErrNotFound
	}
	for _, other := range s.guests {
		if other.ID != id && other.Username == username {
			return ErrUsernameTaken
		}
	}
	g.Username = username
	g.DisplayName = username
	return nil
}

func (s *Memory) RecordMatch(ctx context.Context, m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *m
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		m.ID = rec.ID
	}
	s.matches = append(s.matches, &rec)
	return nil
}

func (s *Memory) Roster(ctx context.Context) ([]RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RosterEntry
	for _, g := range s.guests {
		if g.Username == "" {
			continue
		}
		e := RosterEntry{Username: g.Username, CreatedAt: g.CreatedAt}
		for _, m := range s.matches {
			if m.GoldPlayerID != g.ID && m.RedPlayerID != g.ID {
				continue
			}
			if m.WinnerID == g.ID {
				e.Wins++
			} else if m.WinnerID != "" {
				e.Losses++
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Memory) Close() error { return nil }

// Matches returns a snapshot of recorded matches, for tests.
func (s *Memory) Matches() []*Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Match, len(s.matches))
	for i, m := range s.matches {
		rec := *m
		out[i] = &rec
	}
	return out
}

func copyGuest(g *Guest) *Guest {
	c := *g
	return &c
}
