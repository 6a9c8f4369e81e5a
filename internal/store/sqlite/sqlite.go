// Package sqlite implements store.Store on a local SQLite database. It is
// the default backend for single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
)

// Open opens (or creates) the database at path, enables WAL journal mode and
// applies the schema.
func Open(path string) (store.Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := bootstrap(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqlStore{db: db}, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (store.Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// A single connection keeps the in-memory database alive and serializes
	// writers; the pool would otherwise hand each connection its own empty DB.
	db.SetMaxOpenConns(1)
	if err := bootstrap(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqlStore{db: db}, nil
}

func bootstrap(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return err
	}
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS participants (
            partition    TEXT NOT NULL,
            email        TEXT NOT NULL,
            display_name TEXT NOT NULL DEFAULT '',
            weight       INTEGER NOT NULL DEFAULT 0,
            PRIMARY KEY (partition, email)
        );
        CREATE TABLE IF NOT EXISTS rosters (
            partition   TEXT PRIMARY KEY,
            member_list TEXT NOT NULL
        );
    `)
	return err
}

type sqlStore struct{ db *sql.DB }

func (s *sqlStore) Participants() store.Participants { return &participants{db: s.db} }
func (s *sqlStore) Rosters() store.Rosters           { return &rosters{db: s.db} }

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlStore) Close() error                   { return s.db.Close() }

type participants struct{ db *sql.DB }

func (p *participants) Get(ctx context.Context, partition, email string) (*model.Participant, error) {
	var out model.Participant
	row := p.db.QueryRowContext(ctx, `
        SELECT email, display_name, weight FROM participants
        WHERE partition = ? AND email = ?
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
        INSERT INTO participants (partition, email) VALUES (?, ?)
        ON CONFLICT (partition, email) DO NOTHING
    `, partition, email)
	return err
}

func (p *participants) SetDisplayName(ctx context.Context, partition, email, displayName string) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO participants (partition, email, display_name) VALUES (?, ?, ?)
        ON CONFLICT (partition, email) DO UPDATE SET display_name = excluded.display_name
    `, partition, email, displayName)
	return err
}

func (p *participants) IncrementWeight(ctx context.Context, partition, email string) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO participants (partition, email, weight) VALUES (?, ?, 1)
        ON CONFLICT (partition, email) DO UPDATE SET weight = weight + 1
    `, partition, email)
	return err
}

func (p *participants) Weights(ctx context.Context, partition string, emails []string) (map[string]int64, error) {
	out := make(map[string]int64, len(emails))
	if len(emails) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(emails))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(emails)+1)
	args = append(args, partition)
	for _, e := range emails {
		args = append(args, e)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
        SELECT email, weight FROM participants
        WHERE partition = ? AND email IN (%s)
    `, placeholders), args...)
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
        WHERE partition = ? ORDER BY email
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
        DELETE FROM participants WHERE partition = ? AND email = ?
    `, partition, email)
	return err
}

type rosters struct{ db *sql.DB }

func (r *rosters) Get(ctx context.Context, partition string) ([]string, error) {
	var raw string
	row := r.db.QueryRowContext(ctx, `SELECT member_list FROM rosters WHERE partition = ?`, partition)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var emails []string
	if err := json.Unmarshal([]byte(raw), &emails); err != nil {
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
        INSERT INTO rosters (partition, member_list) VALUES (?, ?)
        ON CONFLICT (partition) DO UPDATE SET member_list = excluded.member_list
    `, partition, string(raw))
	return err
}
