/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"stickercanvas/internal/asset"
	"stickercanvas/internal/document"
	"stickercanvas/internal/editor"
	"stickercanvas/internal/storage"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memDesigns struct {
	mu   sync.Mutex
	byID map[string]document.Design
	now  time.Time
}

func newMemDesigns() *memDesigns {
	return &memDesigns{byID: map[string]document.Design{}, now: time.Unix(1700000000, 0).UTC()}
}

func (m *memDesigns) SaveDesign(_ context.Context, d document.Design) (document.Design, error) {
	id, err := designID(d.ID, true)
	if err != nil {
		return document.Design{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(time.Second)
	d.ID = id.String()
	if prev, ok := m.byID[d.ID]; ok {
		d.Likes, d.CreatedAt = prev.Likes, prev.CreatedAt
	} else {
		d.Likes, d.CreatedAt = 0, m.now
	}
	d.UpdatedAt = m.now
	m.byID[d.ID] = d
	return d, nil
}

func (m *memDesigns) GetDesign(_ context.Context, id string) (document.Design, error) {
	if _, err := designID(id, false); err != nil {
		return document.Design{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return document.Design{}, ErrDesignNotFound
	}
	return d, nil
}

func (m *memDesigns) ListByAuthor(_ context.Context, author string, limit int) ([]document.Design, error) {
	return m.filter(func(d document.Design) bool { return d.Author == author }, limit), nil
}

func (m *memDesigns) SearchDesigns(_ context.Context, text string, limit int) ([]document.Design, error) {
	text = strings.ToLower(text)
	return m.filter(func(d document.Design) bool { return strings.Contains(strings.ToLower(d.Title), text) }, limit), nil
}

func (m *memDesigns) filter(keep func(document.Design) bool, limit int) []document.Design {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []document.Design
	for _, d := range m.byID {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newTestServer(t *testing.T, opts ServerOptions) *httptest.Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	ts := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func openDrafts(t *testing.T) *storage.DraftStore {
	t.Helper()
	ds, err := storage.OpenDraftStore(context.Background(), filepath.Join(t.TempDir(), storage.DBFileName))
	if err != nil {
		t.Fatalf("open drafts: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func sampleScene() document.Scene {
	return document.Scene{
		CanvasW: 64,
		CanvasH: 32,
		Objects: []document.Object{
			{Type: document.TypeImage, ID: "img_1", Src: "a.png", X: document.F(32), Y: document.F(16), S: document.F(1)},
			{Type: document.TypeText, ID: "txt_1", Text: document.Str("hi"), X: document.F(10), Y: document.F(10)},
		},
	}
}

func TestHealthReadyVersion(t *testing.T) {
	ready := errors.New("db down")
	ts := newTestServer(t, ServerOptions{Ready: func(context.Context) error { return ready }})

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/version", http.StatusOK},
	} {
		resp, err := http.Get(ts.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("GET %s: status %d, want %d", tc.path, resp.StatusCode, tc.want)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatalf("GET %s: missing request id", tc.path)
		}
	}
}

func TestDraftRoundTripThroughClient(t *testing.T) {
	at := time.UnixMilli(1712345678901)
	ts := newTestServer(t, ServerOptions{Drafts: openDrafts(t), Now: func() time.Time { return at }})
	c := NewClient(ts.URL+"/", "")
	ctx := context.Background()

	if _, err := c.GetDraft(ctx, storage.DefaultDraftKey); !IsNotFound(err) {
		t.Fatalf("expected 404 before save, got %v", err)
	}
	saved, err := c.PutDraft(ctx, storage.DefaultDraftKey, sampleScene())
	if err != nil {
		t.Fatalf("put draft: %v", err)
	}
	if saved.SavedAt != at.UnixMilli() {
		t.Fatalf("savedAt = %d, want %d", saved.SavedAt, at.UnixMilli())
	}
	got, err := c.GetDraft(ctx, storage.DefaultDraftKey)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if len(got.State.Objects) != 2 || got.State.Objects[0].ID != "img_1" || got.State.Objects[1].ID != "txt_1" {
		t.Fatalf("unexpected objects: %+v", got.State.Objects)
	}
	if err := c.DeleteDraft(ctx, storage.DefaultDraftKey); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := c.GetDraft(ctx, storage.DefaultDraftKey); !IsNotFound(err) {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestWritesRequireToken(t *testing.T) {
	ts := newTestServer(t, ServerOptions{Drafts: openDrafts(t), Token: "s3cret"})
	ctx := context.Background()

	_, err := NewClient(ts.URL, "").PutDraft(ctx, "k", sampleScene())
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", err)
	}
	_, err = NewClient(ts.URL, "wrong").PutDraft(ctx, "k", sampleScene())
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %v", err)
	}
	if _, err := NewClient(ts.URL, "s3cret").PutDraft(ctx, "k", sampleScene()); err != nil {
		t.Fatalf("put with token: %v", err)
	}
	// Reads stay open.
	if _, err := NewClient(ts.URL, "").GetDraft(ctx, "k"); err != nil {
		t.Fatalf("get without token: %v", err)
	}
}

func TestRenderRejectsInvalidScene(t *testing.T) {
	called := false
	ts := newTestServer(t, ServerOptions{Render: func(context.Context, document.Scene, bool) ([]byte, error) {
		called = true
		return nil, nil
	}})
	resp, err := http.Post(ts.URL+"/api/render", "application/json", strings.NewReader(`{"canvasW": 10}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if called {
		t.Fatalf("render called for invalid scene")
	}
}

func TestRenderWatermarkFlag(t *testing.T) {
	var got []bool
	ts := newTestServer(t, ServerOptions{Render: func(_ context.Context, _ document.Scene, wm bool) ([]byte, error) {
		got = append(got, wm)
		return []byte("png"), nil
	}})
	c := NewClient(ts.URL, "")
	for _, wm := range []bool{true, false} {
		b, err := c.Render(context.Background(), sampleScene(), wm)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if string(b) != "png" {
			t.Fatalf("body = %q", b)
		}
	}
	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("watermark flags = %v", got)
	}
}

func TestRenderWithoutWatermarkNeedsToken(t *testing.T) {
	var got []bool
	ts := newTestServer(t, ServerOptions{Token: "s3cret", Render: func(_ context.Context, _ document.Scene, wm bool) ([]byte, error) {
		got = append(got, wm)
		return []byte("png"), nil
	}})
	ctx := context.Background()
	anon := NewClient(ts.URL, "")
	if _, err := anon.Render(ctx, sampleScene(), true); err != nil {
		t.Fatalf("watermarked render without token: %v", err)
	}
	var se *StatusError
	if _, err := anon.Render(ctx, sampleScene(), false); !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unwatermarked render without token, got %v", err)
	}
	if _, err := NewClient(ts.URL, "s3cret").Render(ctx, sampleScene(), false); err != nil {
		t.Fatalf("unwatermarked render with token: %v", err)
	}
	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("watermark flags = %v", got)
	}
}

func TestRenderThroughEditor(t *testing.T) {
	red := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range red.Pix {
		if i%4 == 0 || i%4 == 3 {
			red.Pix[i] = 0xff
		}
	}
	loader := asset.StaticLoader{"a.png": red}
	renderFn := func(ctx context.Context, doc document.Scene, wm bool) ([]byte, error) {
		return editor.RenderDocument(ctx, doc, editor.Options{Loader: loader, Logger: quietLogger()}, wm)
	}
	ts := newTestServer(t, ServerOptions{Render: renderFn})

	doc := sampleScene()
	doc.Objects = doc.Objects[:1]
	b, err := NewClient(ts.URL, "").Render(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Fatalf("size = %v, want 64x32", img.Bounds())
	}
	c := color.RGBAModel.Convert(img.At(32, 16)).(color.RGBA)
	if c.R < 200 || c.G > 40 || c.B > 40 {
		t.Fatalf("centre pixel = %+v, want red", c)
	}
}

func TestDesignRoutes(t *testing.T) {
	store := newMemDesigns()
	ts := newTestServer(t, ServerOptions{Designs: store})
	c := NewClient(ts.URL, "")
	ctx := context.Background()

	const id = "0b7f8a4e-6c1d-4a53-9a0e-2f4c1b9d7e10"
	saved, err := c.PutDesign(ctx, id, document.Design{Title: "Beach day", Author: "mika", Likes: 99, State: sampleScene()})
	if err != nil {
		t.Fatalf("put design: %v", err)
	}
	if saved.ID != id || saved.Likes != 0 {
		t.Fatalf("saved = %+v", saved)
	}
	if _, err := c.PutDesign(ctx, "a2c2e7a9-1111-4d4d-8e8e-000000000001", document.Design{Title: "Night", Author: "mika"}); err != nil {
		t.Fatalf("put second design: %v", err)
	}

	got, err := c.GetDesign(ctx, id)
	if err != nil {
		t.Fatalf("get design: %v", err)
	}
	if got.Title != "Beach day" || len(got.State.Objects) != 2 {
		t.Fatalf("got = %+v", got)
	}

	list, err := c.ListDesigns(ctx, "mika", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Night" {
		t.Fatalf("list = %+v", list)
	}

	if _, err := c.GetDesign(ctx, "5d1c7c55-0000-4000-8000-000000000000"); !IsNotFound(err) {
		t.Fatalf("expected 404, got %v", err)
	}
	var se *StatusError
	if _, err := c.GetDesign(ctx, "not-a-uuid"); !errors.As(err, &se) || se.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/designs?q=beach")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status %d", resp.StatusCode)
	}
	resp2, err := http.Get(ts.URL + "/api/designs")
	if err != nil {
		t.Fatalf("list without filter: %v", err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("list without filter status %d, want 400", resp2.StatusCode)
	}
}

func TestUnconfiguredStores(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/drafts/k"},
		{http.MethodGet, "/api/designs/x"},
		{http.MethodPost, "/api/render"},
	} {
		req, _ := http.NewRequest(tc.method, ts.URL+tc.path, strings.NewReader(`{"objects":[]}`))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: status %d, want 503", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("0002_designs_title_search.sql")
	if err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("designs.sql"); err == nil {
		t.Fatalf("expected error for unversioned name")
	}
}
