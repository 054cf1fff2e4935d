/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render draws a scene onto a gg raster surface: template, freehand
// paths, placed images and text, and the selection chrome of the selected
// object. Everything is drawn under the viewport transform, so pointer input
// maps back into scene space through a single inverse.
package render

import (
	"errors"
	"image"

	"github.com/gogpu/gg"

	"stickercanvas/internal/scene"
	"stickercanvas/internal/textlayout"
	"stickercanvas/internal/vector"
)

var placeholderFill = gg.RGBA{R: 1, G: 1, B: 1, A: 0.06}

// Frame is everything one redraw depends on.
type Frame struct {
	Scene    *scene.Scene
	View     scene.Viewport
	Template image.Image
	// Chrome enables the selection outline, ring and handles.
	Chrome bool
}

// Renderer draws frames. It holds no per-frame state and may be shared.
type Renderer struct {
	fonts *textlayout.Library
	dpr   float64
}

// New returns a renderer measuring text with fonts. dpr scales the minimum
// size of handles and chrome strokes.
func New(fonts *textlayout.Library, dpr float64) *Renderer {
	if dpr <= 0 {
		dpr = 1
	}
	return &Renderer{fonts: fonts, dpr: dpr}
}

// DPR returns the device pixel ratio the renderer was built for.
func (r *Renderer) DPR() float64 { return r.dpr }

// Measure implements scene.Measurer with the renderer's font library.
func (r *Renderer) Measure(family string, size float64, text string) float64 {
	if r.fonts == nil {
		return 0
	}
	return r.fonts.Measure(family, size, text)
}

// Draw clears dc and paints f. Drawing continues past a failed primitive;
// all primitive errors are joined.
func (r *Renderer) Draw(dc *gg.Context, f Frame) error {
	_ = dc.FlushGPU()
	dc.ClearWithColor(gg.Transparent)

	w, h := float64(dc.Width()), float64(dc.Height())
	frame := scene.PaddedFrame(w, h)
	view := f.View
	if view.Scale == 0 {
		view = scene.IdentityViewport()
	}
	vm := view.Matrix()
	dst := clipTo(surface(dc), frame)

	dc.Push()
	defer dc.Pop()
	dc.Identity()
	dc.ClipRect(frame.X, frame.Y, frame.W, frame.H)
	dc.SetTransform(toGG(vm))

	var errs []error
	if f.Template != nil {
		b := f.Template.Bounds()
		if b.Dx() > 0 && b.Dy() > 0 {
			m := vm.Mul(vector.Translate(frame.X, frame.Y)).
				Mul(vector.Scale(frame.W/float64(b.Dx()), frame.H/float64(b.Dy())))
			drawBitmap(dst, m, f.Template, 1)
		}
	} else {
		dc.SetColor(placeholderFill.Color())
		dc.DrawRectangle(frame.X, frame.Y, frame.W, frame.H)
		errs = append(errs, dc.Fill())
	}

	if f.Scene == nil {
		return errors.Join(errs...)
	}
	for _, o := range f.Scene.Objects {
		switch v := o.(type) {
		case *scene.Path:
			errs = append(errs, r.drawPath(dc, v))
		case *scene.Image:
			r.drawImage(dst, vm, v)
		case *scene.Text:
			r.drawText(dst, view, v)
		}
	}

	if f.Chrome {
		if sel := f.Scene.Selected(); sel != nil {
			errs = append(errs, r.drawChrome(dc, sel))
		}
	}
	return errors.Join(errs...)
}

func (r *Renderer) drawImage(dst *image.RGBA, vm vector.Affine2D, o *scene.Image) {
	if o.Bitmap == nil {
		return
	}
	b := o.Bitmap.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	w, h := o.W, o.H
	if w <= 0 || h <= 0 {
		w, h = float64(b.Dx()), float64(b.Dy())
	}
	m := vm.Mul(vector.Placement(o.X, o.Y, o.R, o.S)).
		Mul(vector.Translate(-w/2, -h/2)).
		Mul(vector.Scale(w/float64(b.Dx()), h/float64(b.Dy())))
	drawBitmap(dst, m, o.Bitmap, opacityOf(o.Opacity))
}

func opacityOf(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
