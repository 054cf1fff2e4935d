/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"math"

	"stickercanvas/internal/vector"
)

// Measurer returns the advance width of text set in family at size px.
// Hit testing, handle placement and drawing must share one Measurer.
type Measurer interface {
	Measure(family string, size float64, text string) float64
}

// MeasureFunc adapts a plain function to Measurer.
type MeasureFunc func(family string, size float64, text string) float64

func (f MeasureFunc) Measure(family string, size float64, text string) float64 {
	return f(family, size, text)
}

// BoundsOf returns the scaled, unrotated width and height of an editable
// object. Paths have no bounds.
func BoundsOf(o Object, m Measurer) (vector.Size, bool) {
	switch v := o.(type) {
	case *Image:
		return vector.Size{W: v.W * v.S, H: v.H * v.S}, true
	case *Text:
		w := 0.0
		if m != nil {
			w = m.Measure(v.FontFamily, v.Size, v.Text)
		}
		return vector.Size{W: w * v.S, H: v.Size * v.S}, true
	case *Path:
		return vector.Size{}, false
	default:
		return vector.Size{}, false
	}
}

// Handle is a circular affordance in scene space.
type Handle struct {
	Center vector.Pt
	Radius float64
}

// Hit reports whether p lies inside the handle disc.
func (h Handle) Hit(p vector.Pt) bool {
	dx := p.X - h.Center.X
	dy := p.Y - h.Center.Y
	return dx*dx+dy*dy <= h.Radius*h.Radius
}

// Ring is the rotation annulus around an object's centre.
type Ring struct {
	Center    vector.Pt
	Radius    float64
	Thickness float64
}

// Hit reports whether p lies within Thickness of the ring line.
func (r Ring) Hit(p vector.Pt) bool {
	d := vector.Dist(p, r.Center)
	return d >= r.Radius-r.Thickness && d <= r.Radius+r.Thickness
}

func cornerHandle(t Transform, local vector.Pt, radius float64) Handle {
	off := vector.RotatePt(local, t.R)
	return Handle{Center: vector.Pt{X: t.X + off.X, Y: t.Y + off.Y}, Radius: radius}
}

// DeleteHandle sits off the top-right corner. Only images carry one.
func DeleteHandle(o Object, m Measurer, dpr float64) (Handle, bool) {
	img, ok := o.(*Image)
	if !ok {
		return Handle{}, false
	}
	b, _ := BoundsOf(img, m)
	short := math.Min(b.W, b.H)
	offset := math.Max(10*dpr, short*0.08)
	radius := math.Max(12*dpr, short*0.09)
	return cornerHandle(img.Transform, vector.Pt{X: b.W/2 + offset, Y: -b.H/2 - offset}, radius), true
}

// ScaleHandle sits off the bottom-right corner of images and text.
func ScaleHandle(o Object, m Measurer, dpr float64) (Handle, bool) {
	t, ok := PlacementOf(o)
	if !ok {
		return Handle{}, false
	}
	b, _ := BoundsOf(o, m)
	short := math.Min(b.W, b.H)
	offset := math.Max(14*dpr, short*0.1)
	radius := math.Max(16*dpr, short*0.1)
	return cornerHandle(*t, vector.Pt{X: b.W/2 + offset, Y: b.H/2 + offset}, radius), true
}

// RotationRing returns the annulus used to start a rotate drag.
func RotationRing(o Object, m Measurer, dpr float64) (Ring, bool) {
	t, ok := PlacementOf(o)
	if !ok {
		return Ring{}, false
	}
	b, _ := BoundsOf(o, m)
	radius := math.Max(26*dpr, math.Max(b.W, b.H)*0.5+16*dpr)
	return Ring{Center: t.Center(), Radius: radius, Thickness: 10 * dpr}, true
}

// Contains reports whether p falls inside the rotated bounds of o.
func Contains(o Object, p vector.Pt, m Measurer) bool {
	t, ok := PlacementOf(o)
	if !ok {
		return false
	}
	b, _ := BoundsOf(o, m)
	local := vector.RotatePt(vector.Pt{X: p.X - t.X, Y: p.Y - t.Y}, -t.R)
	return math.Abs(local.X) <= b.W/2 && math.Abs(local.Y) <= b.H/2
}

// HitTest returns the id of the topmost image or text under p, or "".
func (s *Scene) HitTest(p vector.Pt, m Measurer) string {
	for i := len(s.Objects) - 1; i >= 0; i-- {
		o := s.Objects[i]
		if !Editable(o) {
			continue
		}
		if Contains(o, p, m) {
			return o.ObjectID()
		}
	}
	return ""
}
