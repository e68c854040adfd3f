package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Postgres is the Store backed by a PostgreSQL database via lib/pq.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to the database, verifies the connection and ensures
// the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS guests (
			id           UUID PRIMARY KEY,
			display_name TEXT NOT NULL,
			username     TEXT UNIQUE,
			token        TEXT NOT NULL UNIQUE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id             UUID PRIMARY KEY,
			gold_player_id UUID NOT NULL REFERENCES guests(id),
			red_player_id  UUID NOT NULL REFERENCES guests(id),
			winner_id      UUID REFERENCES guests(id),
			win_type       TEXT,
			points_won     INTEGER,
			created_at     TIMESTAMPTZ NOT NULL,
			completed_at   TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS matches_winner_idx ON matches (winner_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateGuest(ctx context.Context) (*Guest, error) {
	g := &Guest{
		ID:          uuid.NewString(),
		DisplayName: newDisplayName(),
		Token:       newToken(),
		CreatedAt:   time.Now().UTC(),
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO guests (id, display_name, token, created_at) VALUES ($1, $2, $3, $4)`,
		g.ID, g.DisplayName, g.Token, g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert guest: %w", err)
	}
	return g, nil
}

func (p *Postgres) GuestByToken(ctx context.Context, token string) (*Guest, error) {
	return p.scanGuest(p.db.QueryRowContext(ctx,
		`SELECT id, display_name, COALESCE(username, ''), token, created_at
		 FROM guests WHERE token = $1`, token))
}

func (p *Postgres) GuestByID(ctx context.Context, id string) (*Guest, error) {
	return p.scanGuest(p.db.QueryRowContext(ctx,
		`SELECT id, display_name, COALESCE(username, ''), token, created_at
		 FROM guests WHERE id = $1`, id))
}

func (p *Postgres) scanGuest(row *sql.Row) (*Guest, error) {
	var g Guest
	err := row.Scan(&g.ID, &g.DisplayName, &g.Username, &g.Token, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan guest: %w", err)
	}
	return &g, nil
}

func (p *Postgres) ClaimUsername(ctx context.Context, id, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE guests SET username = $2, display_name = $2 WHERE id = $1`,
		id, username)
	if err != nil {
		var pqErr *pq.Error
		// 23505 is unique_violation: the username column's constraint.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("claim username: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RecordMatch(ctx context.Context, m *Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO matches
		 (id, gold_player_id, red_player_id, winner_id, win_type, points_won, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.GoldPlayerID, m.RedPlayerID, m.WinnerID, m.WinType,
		m.PointsWon, m.CreatedAt, m.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (p *Postgres) Roster(ctx context.Context) ([]RosterEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT g.username, g.created_at,
		        COALESCE(SUM(CASE WHEN m.winner_id = g.id THEN 1 ELSE 0 END), 0) AS wins,
		        COALESCE(SUM(CASE WHEN m.winner_id IS NOT NULL AND m.winner_id <> g.id THEN 1 ELSE 0 END), 0) AS losses
		 FROM guests g
		 LEFT JOIN matches m ON m.gold_player_id = g.id OR m.red_player_id = g.id
		 WHERE g.username IS NOT NULL AND g.username <> ''
		 GROUP BY g.id, g.username, g.created_at
		 ORDER BY wins DESC, g.username ASC`)
	if err != nil {
		return nil, fmt.Errorf("roster query: %w", err)
	}
	defer rows.Close()

	var out []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.Username, &e.CreatedAt, &e.Wins, &e.Losses); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
