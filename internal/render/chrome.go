/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"math"

	"github.com/gogpu/gg"

	"stickercanvas/internal/scene"
)

var (
	chromeBlue     = gg.RGBA{R: 106.0 / 255, G: 168.0 / 255, B: 1, A: 0.9}
	chromeRing     = gg.RGBA{R: 106.0 / 255, G: 168.0 / 255, B: 1, A: 0.55}
	chromeWhite    = gg.RGBA{R: 1, G: 1, B: 1, A: 0.9}
	chromeDeleteBg = gg.RGBA{R: 28.0 / 255, G: 34.0 / 255, B: 48.0 / 255, A: 0.9}
)

// drawChrome overlays the bounding outline, rotation ring, scale handle and,
// for images, the delete handle of o.
func (r *Renderer) drawChrome(dc *gg.Context, o scene.Object) error {
	t, ok := scene.PlacementOf(o)
	if !ok {
		return nil
	}
	b, _ := scene.BoundsOf(o, r)
	lw := math.Max(2, 2*r.dpr)
	var errs []error

	dc.Push()
	dc.Translate(t.X, t.Y)
	dc.Rotate(t.R)
	setColor(dc, chromeBlue)
	dc.SetLineWidth(lw)
	dc.DrawRectangle(-b.W/2, -b.H/2, b.W, b.H)
	errs = append(errs, dc.Stroke())
	dc.Pop()

	if ring, ok := scene.RotationRing(o, r, r.dpr); ok {
		setColor(dc, chromeRing)
		dc.SetLineWidth(lw)
		dc.SetDash(6*r.dpr, 6*r.dpr)
		dc.DrawCircle(ring.Center.X, ring.Center.Y, ring.Radius)
		errs = append(errs, dc.Stroke())
		dc.ClearDash()
		setColor(dc, chromeBlue)
		dc.DrawCircle(ring.Center.X+ring.Radius, ring.Center.Y, 4*r.dpr)
		errs = append(errs, dc.Fill())
	}

	if h, ok := scene.ScaleHandle(o, r, r.dpr); ok {
		errs = append(errs, disc(dc, h.Center.X, h.Center.Y, h.Radius, chromeBlue, lw))
	}

	if h, ok := scene.DeleteHandle(o, r, r.dpr); ok {
		errs = append(errs, disc(dc, h.Center.X, h.Center.Y, h.Radius, chromeDeleteBg, lw))
		c := h.Radius * 0.6
		setColor(dc, chromeWhite)
		dc.MoveTo(h.Center.X-c, h.Center.Y-c)
		dc.LineTo(h.Center.X+c, h.Center.Y+c)
		dc.MoveTo(h.Center.X+c, h.Center.Y-c)
		dc.LineTo(h.Center.X-c, h.Center.Y+c)
		errs = append(errs, dc.Stroke())
	}
	return errors.Join(errs...)
}

func disc(dc *gg.Context, x, y, radius float64, fill gg.RGBA, lw float64) error {
	setColor(dc, fill)
	dc.DrawCircle(x, y, radius)
	errFill := dc.Fill()
	setColor(dc, chromeWhite)
	dc.SetLineWidth(lw)
	dc.DrawCircle(x, y, radius)
	return errors.Join(errFill, dc.Stroke())
}

func setColor(dc *gg.Context, c gg.RGBA) { dc.SetRGBA(c.R, c.G, c.B, c.A) }
