// Package pgstore keeps diagnosis history lists in PostgreSQL.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kisan-mitra/api/internal/history"
	"kisan-mitra/api/internal/logger"
)

const schema = `
create table if not exists diagnosis_history (
	storage_key text primary key,
	entries     jsonb not null,
	updated_at  timestamptz not null default now()
)`

type Repo struct{ DB *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{DB: db} }

// Open connects with the pgx driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *Repo) Load(ctx context.Context, key string) ([]history.Entry, error) {
	const q = `select entries from diagnosis_history where storage_key = $1`
	var js []byte
	err := r.DB.QueryRowContext(ctx, q, key).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []history.Entry
	if err := json.Unmarshal(js, &out); err != nil {
		logger.Warnf("history %s: corrupt row, reading as empty: %v", key, err)
		return nil, nil
	}
	return out, nil
}

// Save replaces the stored list. PK: storage_key.
func (r *Repo) Save(ctx context.Context, key string, entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	js, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	const q = `
insert into diagnosis_history(storage_key, entries)
values ($1, $2)
on conflict (storage_key)
do update set entries = excluded.entries, updated_at = now()`
	_, err = r.DB.ExecContext(ctx, q, key, js)
	return err
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, `delete from diagnosis_history where storage_key = $1`, key)
	return err
}
