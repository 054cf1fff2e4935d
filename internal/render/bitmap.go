/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"stickercanvas/internal/vector"
)

// surface exposes the context's pixel buffer as an *image.RGBA sharing the
// same memory. Both use premultiplied RGBA rows.
func surface(dc *gg.Context) *image.RGBA {
	pm := dc.ResizeTarget()
	return &image.RGBA{
		Pix:    pm.Data(),
		Stride: pm.Width() * 4,
		Rect:   image.Rect(0, 0, pm.Width(), pm.Height()),
	}
}

func clipTo(img *image.RGBA, r vector.Rect) *image.RGBA {
	rect := image.Rect(int(r.X), int(r.Y), int(r.X+r.W+0.5), int(r.Y+r.H+0.5))
	return img.SubImage(rect).(*image.RGBA)
}

func toGG(m vector.Affine2D) gg.Matrix {
	return gg.Matrix{A: m.A, B: m.C, C: m.E, D: m.B, E: m.D, F: m.F}
}

// drawBitmap composites src onto dst through m, which maps src pixel space
// (origin at src.Bounds().Min) to dst pixel space.
func drawBitmap(dst *image.RGBA, m vector.Affine2D, src image.Image, opacity float64) {
	if opacity <= 0 {
		return
	}
	sb := src.Bounds()
	m = m.Mul(vector.Translate(-float64(sb.Min.X), -float64(sb.Min.Y)))
	s2d := f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}
	var opts *xdraw.Options
	if opacity < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha16{A: uint16(opacity * 0xffff)})}
	}
	xdraw.BiLinear.Transform(dst, s2d, src, sb, xdraw.Over, opts)
}
