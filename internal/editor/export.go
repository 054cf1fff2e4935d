/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"

	"stickercanvas/internal/asset"
	"stickercanvas/internal/document"
	"stickercanvas/internal/scene"
)

// ErrExportFailed is returned when neither PNG encoding path produced bytes.
var ErrExportFailed = errors.New("export failed")

const (
	watermarkAlpha    = 0.75
	watermarkMinWidth = 120
	watermarkRatio    = 0.28

	// MaxRenderSize caps each side of a headless render surface.
	MaxRenderSize = 4096
)

// ExportOptions controls ExportPNG.
type ExportOptions struct {
	// HideUI renders without selection chrome and at the identity viewport.
	// Both are restored afterwards.
	HideUI bool
	// Watermark composites the configured watermark over the centre.
	Watermark bool
}

// ExportPNG renders the surface to PNG bytes.
func (s *Session) ExportPNG(ctx context.Context, opts ExportOptions) ([]byte, error) {
	var wm image.Image
	if opts.Watermark {
		wm = s.loadWatermark(ctx)
	}

	s.mu.Lock()
	if opts.HideUI {
		prevSel, prevEdit, prevView := s.scene.SelectedID, s.objectEdit, s.view
		s.clearSelection()
		s.view = scene.IdentityViewport()
		s.redraw()
		defer func() {
			s.scene.SelectedID, s.objectEdit, s.view = prevSel, prevEdit, prevView
			s.redraw()
			s.unlock()
		}()
	} else {
		defer s.unlock()
	}
	out, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	if wm != nil {
		drawWatermark(out, wm)
	}
	return s.encode(out)
}

// snapshot copies the live surface into a detached RGBA image.
func (s *Session) snapshot() (*image.RGBA, error) {
	if err := s.dc.FlushGPU(); err != nil {
		return nil, err
	}
	rgba, ok := s.dc.Image().(*image.RGBA)
	if !ok {
		src := s.dc.Image()
		rgba = image.NewRGBA(src.Bounds())
		xdraw.Copy(rgba, image.Point{}, src, src.Bounds(), xdraw.Src, nil)
	}
	return rgba, nil
}

// Snapshot returns a copy of the current surface.
func (s *Session) Snapshot() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) encode(img *image.RGBA) ([]byte, error) {
	b, err := s.encodePNG(img)
	if err == nil && len(b) > 0 {
		return b, nil
	}
	s.log.Warn("primary png encode failed, using data url", slog.Any("err", err))
	fb, ferr := encodeViaDataURL(img)
	if ferr != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, errors.Join(err, ferr))
	}
	return fb, nil
}

func encodeWithGG(img *image.RGBA) ([]byte, error) {
	dc := gg.NewContextForImage(img)
	defer func() { _ = dc.Close() }()
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeViaDataURL(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	_, data, err := asset.DecodeDataURL(asset.EncodeDataURL("image/png", buf.Bytes()))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty png")
	}
	return data, nil
}

// loadWatermark decodes the watermark once. A failed load is logged and
// exports proceed without it.
func (s *Session) loadWatermark(ctx context.Context) image.Image {
	s.watermarkOnce.Do(func() {
		if s.watermarkURL == "" {
			return
		}
		l := s.wmLoader
		if l == nil {
			l = s.loader
		}
		img, err := l.Load(ctx, s.watermarkURL)
		if err != nil {
			s.log.Warn("watermark load failed", slog.String("url", s.watermarkURL), slog.Any("err", err))
			return
		}
		s.watermark = img
	})
	return s.watermark
}

// drawWatermark scales wm to a centred band, keeping its aspect ratio.
func drawWatermark(dst *image.RGBA, wm image.Image) {
	wb := wm.Bounds()
	if wb.Dx() == 0 || wb.Dy() == 0 {
		return
	}
	db := dst.Bounds()
	w := math.Max(watermarkMinWidth, math.Round(float64(db.Dx())*watermarkRatio))
	h := math.Round(w * float64(wb.Dy()) / float64(wb.Dx()))
	x := db.Min.X + int(math.Round((float64(db.Dx())-w)/2))
	y := db.Min.Y + int(math.Round((float64(db.Dy())-h)/2))
	r := image.Rect(x, y, x+int(w), y+int(h))
	mask := image.NewUniform(color.Alpha16{A: uint16(math.Round(watermarkAlpha * 0xffff))})
	xdraw.CatmullRom.Scale(dst, r, wm, wb, xdraw.Over, &xdraw.Options{SrcMask: mask})
}

// RenderDocument restores doc into a throwaway session sized to the document's
// canvas and exports it with the UI hidden. Width and Height in opts are
// overridden when the document carries a canvas size.
func RenderDocument(ctx context.Context, doc document.Scene, opts Options, watermark bool) ([]byte, error) {
	if w := renderSide(doc.CanvasW); w > 0 {
		opts.Width = w
	}
	if h := renderSide(doc.CanvasH); h > 0 {
		opts.Height = h
	}
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()
	if err := s.SetState(ctx, doc); err != nil {
		return nil, fmt.Errorf("restore scene: %w", err)
	}
	return s.ExportPNG(ctx, ExportOptions{HideUI: true, Watermark: watermark})
}

func renderSide(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 0
	}
	return int(math.Min(math.Round(v), MaxRenderSize))
}
