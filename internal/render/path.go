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
	"stickercanvas/internal/vector"
)

// glowLayers are (extra width factor, alpha) pairs approximating a blurred halo.
var glowLayers = [...]struct{ spread, alpha float64 }{
	{1.0, 0.12},
	{0.66, 0.18},
	{0.33, 0.28},
}

// ShadowOffset is the diagonal offset of a shadow effect with the given blur.
func ShadowOffset(blur float64) float64 {
	return math.Max(2, math.Round(blur*0.15))
}

func (r *Renderer) drawPath(dc *gg.Context, p *scene.Path) error {
	if len(p.Points) == 0 {
		return nil
	}
	alpha := opacityOf(p.Opacity)
	if alpha <= 0 {
		return nil
	}
	eff := p.Effect.Normalized()
	main := ParseColor(p.Color, gg.Black)
	size := math.Max(p.Size, 0.5)

	if alpha < 1 {
		dc.PushLayer(gg.BlendNormal, alpha)
		defer dc.PopLayer()
	}

	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	var errs []error
	if eff.StrokeWidth > 0 {
		errs = append(errs, strokePoints(dc, p.Points, size+2*eff.StrokeWidth, ParseColor(eff.StrokeColor, gg.Black), vector.Pt{}))
	}
	errs = append(errs, r.pathEffect(dc, p.Points, size, eff)...)
	errs = append(errs, strokePoints(dc, p.Points, size, main, vector.Pt{}))
	return errors.Join(errs...)
}

func (r *Renderer) pathEffect(dc *gg.Context, pts []vector.Pt, size float64, eff scene.Effect) []error {
	ec := ParseColor(eff.Color, gg.Black)
	var errs []error
	switch eff.Kind {
	case scene.EffectGlow:
		if eff.Blur <= 0 {
			return nil
		}
		for _, l := range glowLayers {
			errs = append(errs, strokePoints(dc, pts, size+eff.Blur*l.spread, withAlpha(ec, l.alpha), vector.Pt{}))
		}
	case scene.EffectShadow:
		off := ShadowOffset(eff.Blur)
		shift := vector.Pt{X: off, Y: off}
		if eff.Blur > 0 {
			errs = append(errs, strokePoints(dc, pts, size+eff.Blur*0.5, withAlpha(ec, 0.2), shift))
		}
		errs = append(errs, strokePoints(dc, pts, size, withAlpha(ec, 0.6), shift))
	case scene.EffectNone:
	}
	return errs
}

func strokePoints(dc *gg.Context, pts []vector.Pt, width float64, c gg.RGBA, shift vector.Pt) error {
	dc.SetRGBA(c.R, c.G, c.B, c.A)
	if len(pts) == 1 {
		dc.DrawCircle(pts[0].X+shift.X, pts[0].Y+shift.Y, width/2)
		return dc.Fill()
	}
	dc.SetLineWidth(width)
	dc.MoveTo(pts[0].X+shift.X, pts[0].Y+shift.Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X+shift.X, p.Y+shift.Y)
	}
	return dc.Stroke()
}
