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
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"stickercanvas/internal/document"
)

func openPGForTest(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("SCV_PG_DSN")
	if dsn == "" {
		t.Skip("SCV_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := OpenRepository(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRepositoryDesigns(t *testing.T) {
	r := openPGForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Migrations are idempotent.
	if err := r.Migrate(ctx); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}

	author := "test-" + uuid.NewString()
	first, err := r.SaveDesign(ctx, document.Design{Title: "Sunrise sticker", Author: author, State: sampleScene()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := uuid.Parse(first.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", first.ID)
	}
	first.Title = "Sunrise sticker v2"
	updated, err := r.SaveDesign(ctx, first)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed on update")
	}

	got, err := r.GetDesign(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Sunrise sticker v2" || len(got.State.Objects) != 2 || got.State.Objects[0].Src != "a.png" {
		t.Fatalf("got = %+v", got)
	}

	list, err := r.ListByAuthor(ctx, author, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v, %v", list, err)
	}
	found, err := r.SearchDesigns(ctx, "sunrise", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	hit := false
	for _, d := range found {
		hit = hit || d.ID == first.ID
	}
	if !hit {
		t.Fatalf("search did not return %s", first.ID)
	}

	if _, err := r.GetDesign(ctx, uuid.NewString()); !errors.Is(err, ErrDesignNotFound) {
		t.Fatalf("expected ErrDesignNotFound, got %v", err)
	}
	if _, err := r.GetDesign(ctx, "nope"); !errors.Is(err, ErrInvalidDesignID) {
		t.Fatalf("expected ErrInvalidDesignID, got %v", err)
	}
}
