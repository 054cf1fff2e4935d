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
	"errors"
	"fmt"
	"time"

	"stickercanvas/internal/document"
)

// language=SQL
// dialect=SQLite
const insertCheckpointSQL = `INSERT INTO checkpoints(key, ts, state) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const listCheckpointsSQL = `SELECT ts, state FROM checkpoints WHERE key = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneCheckpointsSQL = `DELETE FROM checkpoints WHERE key = ? AND id NOT IN (
	SELECT id FROM checkpoints WHERE key = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const deleteCheckpointsSQL = `DELETE FROM checkpoints WHERE key = ?`

// tsLayout is fixed-width so timestamps sort lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Checkpoint is one saved draft in the trail, newest first when listed.
type Checkpoint struct {
	At    time.Time
	Draft document.Draft
}

// Checkpoints returns up to limit checkpoints for key, newest first.
// Entries that no longer decode are skipped.
func (s *DraftStore) Checkpoints(ctx context.Context, key string, limit int) ([]Checkpoint, error) {
	if limit <= 0 {
		limit = s.keep
	}
	rows, err := s.db.QueryContext(ctx, listCheckpointsSQL, key, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()
	var out []Checkpoint
	for rows.Next() {
		var (
			tsStr string
			raw   []byte
		)
		if err := rows.Scan(&tsStr, &raw); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(tsLayout, tsStr)
		d, err := document.DecodeDraft(raw)
		if err != nil {
			continue
		}
		out = append(out, Checkpoint{At: ts, Draft: d})
	}
	return out, rows.Err()
}

// LatestCheckpoint returns the newest checkpoint for key.
func (s *DraftStore) LatestCheckpoint(ctx context.Context, key string) (Checkpoint, error) {
	cps, err := s.Checkpoints(ctx, key, 1)
	if err != nil {
		return Checkpoint{}, err
	}
	if len(cps) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return cps[0], nil
}

// PruneCheckpoints keeps only the newest keepLast checkpoints for key and
// returns how many were removed.
func (s *DraftStore) PruneCheckpoints(ctx context.Context, key string, keepLast int) (int64, error) {
	if keepLast < 0 {
		return 0, errors.New("keepLast must be >= 0")
	}
	res, err := s.db.ExecContext(ctx, pruneCheckpointsSQL, key, key, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

