// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver, for deployments that already run a shared database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
)

// Open connects using the pgx stdlib driver, verifies connectivity and
// applies the schema.
func Open(dsn string) (store.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := bootstrap(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &pgStore{db: db}, nil
}

func bootstrap(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS participants (
            partition    TEXT NOT NULL,
            email        TEXT NOT NULL,
            display_name TEXT NOT NULL DEFAULT '',
            weight       BIGINT NOT NULL DEFAULT 0,
            PRIMARY KEY (partition, email)
        );
        CREATE TABLE IF NOT EXISTS rosters (
            partition   TEXT PRIMARY KEY,
            member_list JSONB NOT NULL
        );
    `)
	return err
}

type pgStore struct{ db *sql.DB }

func (s *pgStore) Participants() store.Participants { return &participants{db: s.db} }
func (s *pgStore) Rosters() store.Rosters           { return &rosters{db: s.db} }

func (s *pgStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *pgStore) Close() error                   { return s.db.Close() }

type participants struct{ db *sql.DB }

func (p *participants) Get(ctx context.Context, partition, email string) (*model.Participant, error) {
	var out model.Participant
	row := p.db.QueryRowContext(ctx, `
        SELECT email, display_name, weight FROM participants
        WHERE partition = $1 AND email = $2
    `, partition, email)
	if err := row.Scan(&out.Email, &out.DisplayName, &out.Weight); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (p *participants) EnsurePresent(ctx context.Context, partition, email string) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO participants (partition, email) VALUES ($1, $2)
        ON CONFLICT (partition, email) DO NOTHING
    `, partition, email)
	return err
}

func (p *participants) SetDisplayName(ctx context.Context, partition, email, displayName string) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO participants (partition, email, display_name) VALUES ($1, $2, $3)
        ON CONFLICT (partition, email) DO UPDATE SET display_name = EXCLUDED.display_name
    `, partition, email, displayName)
	return err
}

func (p *participants) IncrementWeight(ctx context.Context, partition, email string) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO participants (partition, email, weight) VALUES ($1, $2, 1)
        ON CONFLICT (partition, email) DO UPDATE SET weight = participants.weight + 1
    `, partition, email)
	return err
}

func (p *participants) Weights(ctx context.Context, partition string, emails []string) (map[string]int64, error) {
	out := make(map[string]int64, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx, `
        SELECT email, weight FROM participants
        WHERE partition = $1 AND email = ANY($2)
    `, partition, emails)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var email string
		var weight int64
		if err := rows.Scan(&email, &weight); err != nil {
			return nil, err
		}
		out[email] = weight
	}
	return out, rows.Err()
}

func (p *participants) List(ctx context.Context, partition string) ([]*model.Participant, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT email, display_name, weight FROM participants
        WHERE partition = $1 ORDER BY email
    `, partition)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Participant
	for rows.Next() {
		var rec model.Participant
		if err := rows.Scan(&rec.Email, &rec.DisplayName, &rec.Weight); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (p *participants) Delete(ctx context.Context, partition, email string) error {
	_, err := p.db.ExecContext(ctx, `
        DELETE FROM participants WHERE partition = $1 AND email = $2
    `, partition, email)
	return err
}

type rosters struct{ db *sql.DB }

func (r *rosters) Get(ctx context.Context, partition string) ([]string, error) {
	var raw []byte
	row := r.db.QueryRowContext(ctx, `SELECT member_list FROM rosters WHERE partition = $1`, partition)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var emails []string
	if err := json.Unmarshal(raw, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *rosters) Put(ctx context.Context, partition string, emails []string) error {
	raw, err := json.Marshal(emails)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO rosters (partition, member_list) VALUES ($1, $2)
        ON CONFLICT (partition) DO UPDATE SET member_list = EXCLUDED.member_list
    `, partition, raw)
	return err
}
