/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stickercanvas/internal/document"
	applog "stickercanvas/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultListLimit = 50

var (
	// ErrDesignNotFound is returned when no design has the requested id.
	ErrDesignNotFound = errors.New("design not found")
	// ErrInvalidDesignID is returned for ids that are not UUIDs.
	ErrInvalidDesignID = errors.New("invalid design id")
)

// Repository stores published designs in Postgres. The scene is kept as
// jsonb; likes are stored but never changed here.
type Repository struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// OpenRepository connects with the pgx driver, pings and applies migrations.
func OpenRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	r := NewRepository(db)
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// NewRepository wraps an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, log: applog.WithComponent("designs"), now: time.Now}
}

// Close closes the underlying handle.
func (r *Repository) Close() error { return r.db.Close() }

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// SaveDesign inserts d or updates the row with the same id. An empty id gets
// a fresh UUID. Likes and created_at are never overwritten on update.
func (r *Repository) SaveDesign(ctx context.Context, d document.Design) (document.Design, error) {
	id, err := designID(d.ID, true)
	if err != nil {
		return document.Design{}, err
	}
	state, err := document.Encode(d.State)
	if err != nil {
		return document.Design{}, fmt.Errorf("encode state: %w", err)
	}
	now := r.now().UTC()
	const q = `INSERT INTO designs (id, title, author, state, created_at, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $5)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, author = EXCLUDED.author,
    state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
RETURNING likes, created_at, updated_at`
	out := d
	out.ID = id.String()
	if err := r.db.QueryRowContext(ctx, q, id, d.Title, d.Author, string(state), now).
		Scan(&out.Likes, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return document.Design{}, fmt.Errorf("save design: %w", err)
	}
	r.log.Debug("design saved", slog.String("id", out.ID), slog.String("author", out.Author))
	return out, nil
}

// GetDesign loads one design by id.
func (r *Repository) GetDesign(ctx context.Context, id string) (document.Design, error) {
	uid, err := designID(id, false)
	if err != nil {
		return document.Design{}, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT id, title, author, likes, state, created_at, updated_at
FROM designs WHERE id = $1`, uid)
	d, err := scanDesign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Design{}, ErrDesignNotFound
	}
	return d, err
}

// ListByAuthor returns an author's designs, most recently updated first.
func (r *Repository) ListByAuthor(ctx context.Context, author string, limit int) ([]document.Design, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, author, likes, state, created_at, updated_at
FROM designs WHERE author = $1 ORDER BY updated_at DESC, id LIMIT $2`, author, limit)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	return collectDesigns(rows)
}

// SearchDesigns matches titles with a plain full-text query.
func (r *Repository) SearchDesigns(ctx context.Context, text string, limit int) ([]document.Design, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, author, likes, state, created_at, updated_at
FROM designs WHERE title_vector @@ plainto_tsquery('simple', $1)
ORDER BY updated_at DESC, id LIMIT $2`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search designs: %w", err)
	}
	return collectDesigns(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDesign(row rowScanner) (document.Design, error) {
	var (
		d     document.Design
		id    uuid.UUID
		state []byte
	)
	if err := row.Scan(&id, &d.Title, &d.Author, &d.Likes, &state, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return document.Design{}, err
	}
	d.ID = id.String()
	s, err := document.Decode(state)
	if err != nil {
		return document.Design{}, fmt.Errorf("design %s: %w", d.ID, err)
	}
	d.State = s
	return d, nil
}

func collectDesigns(rows *sql.Rows) ([]document.Design, error) {
	defer func() { _ = rows.Close() }()
	var out []document.Design
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func designID(s string, allowNew bool) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" && allowNew {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidDesignID, s)
	}
	return id, nil
}

// Migrate applies embedded SQL migrations in filename order and records each
// applied version.
func (r *Repository) Migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		sqlText := string(b)
		if strings.TrimSpace(sqlText) == "" {
			continue
		}
		r.log.Info("applying migration", slog.String("file", fname))
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func (r *Repository) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("select schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	applied := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
