/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is the interactive sticker composition session: it owns the
// scene, the viewport, the raster surface and the undo history, and turns
// pointer, wheel and keyboard input into scene mutations.
//
// A Session is safe for concurrent use. Image decoding runs outside the
// session lock; history listeners are invoked after the lock is released so
// they may call back into the session.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gg"

	"stickercanvas/internal/asset"
	applog "stickercanvas/internal/log"
	"stickercanvas/internal/render"
	"stickercanvas/internal/scene"
	"stickercanvas/internal/textlayout"
	"stickercanvas/internal/undo"
)

const (
	DefaultCanvasSize   = 900
	defaultLoadTimeout  = 15 * time.Second
	defaultImageScale   = scene.DefaultImageScale
	defaultTextScale    = 1.0
	wheelStep           = 0.04
	keyRotateStep       = 0.08
	pointerSampleFactor = 2.0
)

// ErrSuperseded is returned by operations whose asynchronous result was
// discarded because a later SetState replaced the scene.
var ErrSuperseded = errors.New("superseded by a newer scene")

// Options configures a Session. Zero values select defaults.
type Options struct {
	// Width and Height of the raster surface in device pixels.
	Width, Height int
	// DPR is the device pixel ratio; it scales handle sizes and pen sampling.
	DPR float64
	// Loader decodes image URLs. Defaults to an HTTPLoader.
	Loader asset.Loader
	// Fonts resolves text faces. Defaults to a library with only the
	// built-in fallback face.
	Fonts *textlayout.Library
	// Catalog gates AddAsset on locked entries.
	Catalog *asset.Catalog
	// HistoryDepth caps retrievable undo steps.
	HistoryDepth int
	// WatermarkURL is composited by ExportPNG when requested. Empty disables.
	WatermarkURL string
	// WatermarkLoader loads WatermarkURL. Defaults to Loader.
	WatermarkLoader asset.Loader
	Logger          *slog.Logger
}

// Session is one editing surface.
type Session struct {
	mu sync.Mutex

	log      *slog.Logger
	loader   asset.Loader
	fonts    *textlayout.Library
	catalog  *asset.Catalog
	renderer *render.Renderer
	dc       *gg.Context
	dpr      float64

	scene       scene.Scene
	view        scene.Viewport
	template    image.Image
	templateURL string

	// objectEdit gates selection chrome, handles, wheel and keys.
	objectEdit bool
	mode       Mode
	tool       Tool
	pen        PenOptions
	eraser     EraserOptions

	pointers map[int]pointer
	gesture  *gesture

	history  *undo.History[scene.Scene]
	pending  []undo.State
	listener func(undo.State)

	// generation is bumped by SetState; in-flight loads compare against it.
	generation uint64
	redraws    int

	watermarkURL  string
	wmLoader      asset.Loader
	watermarkOnce sync.Once
	watermark     image.Image
	encodePNG     func(*image.RGBA) ([]byte, error)
}

// New creates a session with an empty scene and a single history snapshot.
func New(opts Options) (*Session, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultCanvasSize
	}
	if opts.Height <= 0 {
		opts.Height = opts.Width
	}
	if opts.DPR <= 0 {
		opts.DPR = 1
	}
	if opts.Loader == nil {
		opts.Loader = asset.NewHTTPLoader("", defaultLoadTimeout)
	}
	if opts.Fonts == nil {
		lib, err := textlayout.NewLibrary()
		if err != nil {
			return nil, fmt.Errorf("font library: %w", err)
		}
		opts.Fonts = lib
	}
	if opts.Catalog == nil {
		opts.Catalog = &asset.Catalog{}
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("editor")
	}
	s := &Session{
		log:          opts.Logger,
		loader:       opts.Loader,
		fonts:        opts.Fonts,
		catalog:      opts.Catalog,
		renderer:     render.New(opts.Fonts, opts.DPR),
		dc:           gg.NewContext(opts.Width, opts.Height),
		dpr:          opts.DPR,
		view:         scene.IdentityViewport(),
		pen:          DefaultPenOptions(),
		eraser:       DefaultEraserOptions(),
		pointers:     map[int]pointer{},
		history:      undo.New[scene.Scene](undo.Config{MaxDepth: opts.HistoryDepth}),
		watermarkURL: opts.WatermarkURL,
		wmLoader:     opts.WatermarkLoader,
		encodePNG:    encodeWithGG,
	}
	s.history.SetListener(func(st undo.State) { s.pending = append(s.pending, st) })
	s.mu.Lock()
	s.history.Reset(s.scene.Clone())
	s.redraw()
	s.pending = nil
	s.mu.Unlock()
	return s, nil
}

// Close releases the raster surface.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.Close()
}

// unlock releases the session lock and then delivers queued history
// notifications.
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	fn := s.listener
	s.mu.Unlock()
	if fn == nil {
		return
	}
	for _, st := range pending {
		fn(st)
	}
}

func (s *Session) redraw() {
	s.redraws++
	err := s.renderer.Draw(s.dc, render.Frame{
		Scene:    &s.scene,
		View:     s.view,
		Template: s.template,
		Chrome:   s.canEditObjects(),
	})
	if err != nil {
		s.log.Debug("redraw incomplete", slog.Any("err", err))
	}
}

// commit finishes a mutation: one redraw, then one history snapshot.
func (s *Session) commit() {
	s.redraw()
	s.history.Push(s.scene.Clone())
}

func (s *Session) canEditObjects() bool {
	return s.objectEdit && s.mode == ModeSelect
}

func (s *Session) selectObject(id string) {
	s.scene.Select(id)
	s.objectEdit = s.scene.SelectedID != ""
}

func (s *Session) clearSelection() {
	s.scene.ClearSelection()
	s.objectEdit = false
}

func (s *Session) width() float64  { return float64(s.dc.Width()) }
func (s *Session) height() float64 { return float64(s.dc.Height()) }

// Size returns the surface size in device pixels.
func (s *Session) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.Width(), s.dc.Height()
}

// DPR returns the device pixel ratio.
func (s *Session) DPR() float64 { return s.dpr }

// View returns the current viewport.
func (s *Session) View() scene.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SelectedID returns the selected object's id, or "".
func (s *Session) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.SelectedID
}

// Objects returns a deep copy of the object list in draw order.
func (s *Session) Objects() []scene.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Clone().Objects
}

// GetUsedAssetNames lists the names of placed images in draw order.
func (s *Session) GetUsedAssetNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.UsedAssetNames()
}

// Catalog returns the asset catalog used to gate AddAsset.
func (s *Session) Catalog() *asset.Catalog { return s.catalog }

// SetAssets replaces the catalog contents.
func (s *Session) SetAssets(list []asset.Asset) { s.catalog.Set(list) }

// FitCanvas resizes the surface to a square of cssWidth·DPR device pixels
// and redraws.
func (s *Session) FitCanvas(cssWidth float64) error {
	px := int(cssWidth * s.dpr)
	if px <= 0 {
		return fmt.Errorf("fit canvas: invalid width %v", cssWidth)
	}
	s.mu.Lock()
	defer s.unlock()
	if err := s.dc.Resize(px, px); err != nil {
		return fmt.Errorf("fit canvas: %w", err)
	}
	s.view.Clamp(scene.PaddedFrame(s.width(), s.height()))
	s.redraw()
	return nil
}

// LoadTemplate decodes url and installs it as the background template.
// A failed load leaves the current template in place.
func (s *Session) LoadTemplate(ctx context.Context, url string) error {
	img, err := s.loader.Load(ctx, url)
	if err != nil {
		s.log.Warn("template load failed", slog.String("url", url), slog.Any("err", err))
		return fmt.Errorf("load template: %w", err)
	}
	s.mu.Lock()
	defer s.unlock()
	s.template = img
	s.templateURL = url
	s.redraw()
	return nil
}

// TemplateURL returns the URL of the installed template.
func (s *Session) TemplateURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templateURL
}

// SetHistoryListener installs fn; it is called at once with the current
// state and after every push, undo, redo and reset.
func (s *Session) SetHistoryListener(fn func(undo.State)) {
	s.mu.Lock()
	s.listener = fn
	s.pending = append(s.pending, undo.State{CanUndo: s.history.CanUndo(), CanRedo: s.history.CanRedo()})
	s.unlock()
}

// Undo restores the previous snapshot. It reports false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.unlock()
	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

// Redo re-applies the most recently undone snapshot.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.unlock()
	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

// CanUndo reports whether Undo would change the scene.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would change the scene.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

func (s *Session) restore(snap scene.Scene) {
	s.scene = snap.Clone()
	s.objectEdit = s.scene.SelectedID != ""
	s.gesture = nil
	clear(s.pointers)
	s.redraw()
}
