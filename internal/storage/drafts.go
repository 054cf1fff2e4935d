/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stickercanvas/internal/document"
)

// DefaultDraftKey is the key the editor autosaves under.
const DefaultDraftKey = "design_draft_v1"

// DefaultKeepCheckpoints is how many checkpoints Save retains per key.
const DefaultKeepCheckpoints = 20

// language=SQL
// dialect=SQLite
const upsertDraftSQL = `INSERT INTO drafts(key, state, saved_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET state = excluded.state, saved_at = excluded.saved_at`

// language=SQL
// dialect=SQLite
const selectDraftSQL = `SELECT state, saved_at FROM drafts WHERE key = ?`

// language=SQL
// dialect=SQLite
const deleteDraftSQL = `DELETE FROM drafts WHERE key = ?`

// DraftStore keeps the latest draft per key plus a bounded checkpoint trail.
type DraftStore struct {
	db   *sql.DB
	keep int
}

// NewDraftStore wraps an open database. keep <= 0 selects
// DefaultKeepCheckpoints.
func NewDraftStore(db *sql.DB, keep int) *DraftStore {
	if keep <= 0 {
		keep = DefaultKeepCheckpoints
	}
	return &DraftStore{db: db, keep: keep}
}

// OpenDraftStore opens the database at path and wraps it.
func OpenDraftStore(ctx context.Context, path string) (*DraftStore, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewDraftStore(db, 0), nil
}

// Close closes the underlying database.
func (s *DraftStore) Close() error { return s.db.Close() }

// Save stores doc as the current draft for key and appends a checkpoint,
// pruning checkpoints beyond the retention limit.
func (s *DraftStore) Save(ctx context.Context, key string, doc document.Scene, savedAt time.Time) error {
	d := document.NewDraft(doc, savedAt)
	raw, err := document.EncodeDraft(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save draft: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertDraftSQL, key, string(raw), d.SavedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save draft: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertCheckpointSQL, key, savedAt.UTC().Format(tsLayout), raw); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, pruneCheckpointsSQL, key, key, s.keep); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prune checkpoints: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit draft: %w", err)
	}
	return nil
}

// Load returns the draft for key. It returns ErrNotFound when nothing was
// saved and document.ErrNoDraft when the stored draft is empty or invalid.
func (s *DraftStore) Load(ctx context.Context, key string) (document.Draft, error) {
	var (
		raw     string
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx, selectDraftSQL, key).Scan(&raw, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Draft{}, ErrNotFound
	}
	if err != nil {
		return document.Draft{}, fmt.Errorf("load draft: %w", err)
	}
	d, err := document.DecodeDraft([]byte(raw))
	if err != nil {
		return document.Draft{}, err
	}
	if d.SavedAt == 0 {
		d.SavedAt = savedAt
	}
	return d, nil
}

// Delete removes the draft for key and its checkpoints.
func (s *DraftStore) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete draft: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteDraftSQL, key); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete draft: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteCheckpointsSQL, key); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return tx.Commit()
}
