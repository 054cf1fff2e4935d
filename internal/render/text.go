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
	"math"

	"github.com/gogpu/gg"

	"stickercanvas/internal/scene"
	"stickercanvas/internal/vector"
)

// sprite is a text line rasterised upright at its on-screen pixel size.
// Origin is the point of the sprite that sits on the object's centre.
type sprite struct {
	img    image.Image
	origin vector.Pt
}

// drawText rasterises t at its final on-screen size and composites the
// result rotated into place, so rotated text stays sharp.
func (r *Renderer) drawText(dst *image.RGBA, view scene.Viewport, t *scene.Text) {
	if t.Text == "" || r.fonts == nil {
		return
	}
	k := t.S * view.Scale
	if k <= 0 || math.IsNaN(k) {
		return
	}
	sp, ok := r.textSprite(t, k)
	if !ok {
		return
	}
	m := view.Matrix().
		Mul(vector.Translate(t.X, t.Y)).
		Mul(vector.Rotate(t.R)).
		Mul(vector.Scale(1/view.Scale, 1/view.Scale)).
		Mul(vector.Translate(-sp.origin.X, -sp.origin.Y))
	drawBitmap(dst, m, sp.img, opacityOf(t.Opacity))
}

func (r *Renderer) textSprite(t *scene.Text, k float64) (sprite, bool) {
	px := t.Size * k
	face := r.fonts.Face(t.FontFamily, px)
	adv := face.Advance(t.Text)
	met := face.Metrics()
	if adv <= 0 {
		return sprite{}, false
	}
	eff := t.Effect.Normalized()
	reach := eff.StrokeWidth
	switch eff.Kind {
	case scene.EffectGlow:
		reach += eff.Blur
	case scene.EffectShadow:
		reach += ShadowOffset(eff.Blur) + eff.Blur*0.5
	case scene.EffectNone:
	}
	pad := math.Ceil(reach*k) + 2
	w := int(math.Ceil(adv + 2*pad))
	h := int(math.Ceil(met.Ascent + met.Descent + 2*pad))
	if w <= 0 || h <= 0 || w > 8192 || h > 8192 {
		return sprite{}, false
	}

	dc := gg.NewContext(w, h)
	defer dc.Close()
	dc.SetFont(face)
	x := pad
	base := pad + met.Ascent

	ring := func(c gg.RGBA, radius float64, dx, dy float64) {
		dc.SetRGBA(c.R, c.G, c.B, c.A)
		if radius <= 0 {
			dc.DrawString(t.Text, x+dx, base+dy)
			return
		}
		n := int(math.Max(8, math.Ceil(2*math.Pi*radius/1.5)))
		for _, rr := range []float64{radius, radius / 2} {
			for i := 0; i < n; i++ {
				a := 2 * math.Pi * float64(i) / float64(n)
				dc.DrawString(t.Text, x+dx+rr*math.Cos(a), base+dy+rr*math.Sin(a))
			}
		}
	}

	ec := ParseColor(eff.Color, gg.Black)
	switch eff.Kind {
	case scene.EffectGlow:
		if eff.Blur > 0 {
			for _, l := range glowLayers {
				ring(withAlpha(ec, l.alpha), eff.Blur*k*l.spread*0.5, 0, 0)
			}
		}
	case scene.EffectShadow:
		off := ShadowOffset(eff.Blur) * k
		if eff.Blur > 0 {
			ring(withAlpha(ec, 0.15), eff.Blur*k*0.25, off, off)
		}
		ring(withAlpha(ec, 0.6), 0, off, off)
	case scene.EffectNone:
	}
	if eff.StrokeWidth > 0 {
		ring(ParseColor(eff.StrokeColor, gg.Black), eff.StrokeWidth*k, 0, 0)
	}
	ring(ParseColor(t.Color, gg.White), 0, 0, 0)

	return sprite{
		img:    dc.Image(),
		origin: vector.Pt{X: pad + adv/2, Y: pad + (met.Ascent+met.Descent)/2},
	}, true
}
