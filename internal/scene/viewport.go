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

const (
	MinViewScale = 0.8
	MaxViewScale = 2.6
	// ViewSnapEpsilon is the band around 1 inside which the viewport
	// collapses back to identity.
	ViewSnapEpsilon = 0.03

	MinScale = 0.05
	MaxScale = 1.2

	framePadRatio    = 0.09
	designInsetRatio = 0.08
	panMarginRatio   = 0.1
)

// ClampScale bounds an interactively edited object scale.
func ClampScale(v float64) float64 { return math.Min(MaxScale, math.Max(MinScale, v)) }

// ClampViewScale bounds the viewport zoom.
func ClampViewScale(v float64) float64 {
	return math.Min(MaxViewScale, math.Max(MinViewScale, v))
}

// PaddedFrame is the clip region the template is drawn into.
func PaddedFrame(w, h float64) vector.Rect {
	pad := w * framePadRatio
	return vector.R(pad, pad, w-2*pad, h-2*pad)
}

// DesignRect is the region in which two-pointer pinches are recognised.
func DesignRect(w, h float64) vector.Rect {
	pad := w * designInsetRatio
	return vector.R(pad, pad, w-2*pad, h-2*pad)
}

// Viewport is the pan/zoom applied on top of the whole composition.
// Screen = scene*Scale + Offset.
type Viewport struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// IdentityViewport returns scale 1 with no offset.
func IdentityViewport() Viewport { return Viewport{Scale: 1} }

// IsIdentity reports whether v is exactly the identity transform.
func (v Viewport) IsIdentity() bool { return v.Scale == 1 && v.OffsetX == 0 && v.OffsetY == 0 }

// Matrix returns the scene-to-screen transform.
func (v Viewport) Matrix() vector.Affine2D {
	return vector.Translate(v.OffsetX, v.OffsetY).Mul(vector.Scale(v.Scale, v.Scale))
}

// ToScene maps a screen point into scene space.
func (v Viewport) ToScene(p vector.Pt) vector.Pt {
	s := v.Scale
	if s == 0 {
		s = 1
	}
	return vector.Pt{X: (p.X - v.OffsetX) / s, Y: (p.Y - v.OffsetY) / s}
}

// ToScreen maps a scene point onto the screen.
func (v Viewport) ToScreen(p vector.Pt) vector.Pt {
	return vector.Pt{X: p.X*v.Scale + v.OffsetX, Y: p.Y*v.Scale + v.OffsetY}
}

// SnapIfClose resets v to identity when its scale is within the snap band.
// It reports whether a snap happened.
func (v *Viewport) SnapIfClose() bool {
	if math.Abs(v.Scale-1) > ViewSnapEpsilon {
		return false
	}
	*v = IdentityViewport()
	return true
}

// ZoomAt sets the scale to next (clamped) while keeping the screen point
// (cx, cy) fixed. Scales inside the snap band collapse to identity.
func (v *Viewport) ZoomAt(next, cx, cy float64) {
	if v.Scale == 0 {
		v.Scale = 1
	}
	clamped := ClampViewScale(next)
	snap := math.Abs(clamped-1) <= ViewSnapEpsilon
	if snap {
		clamped = 1
	}
	ratio := clamped / v.Scale
	v.OffsetX = cx - (cx-v.OffsetX)*ratio
	v.OffsetY = cy - (cy-v.OffsetY)*ratio
	v.Scale = clamped
	if snap {
		v.OffsetX = 0
		v.OffsetY = 0
	}
}

// Pan shifts the offset by a screen delta and clamps it against frame.
func (v *Viewport) Pan(dx, dy float64, frame vector.Rect) {
	v.OffsetX += dx
	v.OffsetY += dy
	v.Clamp(frame)
}

// Clamp keeps the transformed frame overlapping the untransformed frame by at
// least a tenth of its size on each axis, so the template can never be
// scrolled fully out of view.
func (v *Viewport) Clamp(frame vector.Rect) {
	if frame.W <= 0 || frame.H <= 0 {
		return
	}
	v.OffsetX = clampAxis(v.OffsetX, frame.X, frame.W, v.Scale)
	v.OffsetY = clampAxis(v.OffsetY, frame.Y, frame.H, v.Scale)
}

func clampAxis(off, start, length, s float64) float64 {
	m := length * panMarginRatio
	lo := start + m - (start+length)*s
	hi := start + length - m - start*s
	return math.Min(hi, math.Max(lo, off))
}
