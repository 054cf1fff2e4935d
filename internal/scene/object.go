/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene holds the in-memory composition: an ordered list of drawable
// objects, the current selection and the viewport transform. It is pure data
// plus the geometry needed to hit-test and erase; drawing lives in render.
package scene

import (
	"image"

	"stickercanvas/internal/vector"
)

// Kind is the wire discriminator of an object.
type Kind string

const (
	KindImage Kind = "img"
	KindText  Kind = "text"
	KindPath  Kind = "path"
)

// EffectKind selects the glow/shadow treatment of text and paths.
type EffectKind string

const (
	EffectNone   EffectKind = "none"
	EffectGlow   EffectKind = "glow"
	EffectShadow EffectKind = "shadow"
)

// Defaults applied whenever a field is absent.
const (
	DefaultEffectColor = "#00f5ff"
	DefaultStrokeColor = "#000000"
	DefaultFontFamily  = "Noto Sans JP"
	DefaultFontSize    = 36
	DefaultTextColor   = "#ffffff"
	DefaultPathColor   = "#000000"
	DefaultImageScale  = 0.35
)

// Effect is the optional glow/shadow and outline shared by text and paths.
type Effect struct {
	Kind        EffectKind
	Color       string
	Blur        float64
	StrokeColor string
	StrokeWidth float64
}

// DefaultEffect returns the "no effect, no outline" value.
func DefaultEffect() Effect {
	return Effect{Kind: EffectNone, Color: DefaultEffectColor, StrokeColor: DefaultStrokeColor}
}

// Normalized fills empty fields with their defaults and clamps negatives.
func (e Effect) Normalized() Effect {
	switch e.Kind {
	case EffectGlow, EffectShadow:
	default:
		e.Kind = EffectNone
	}
	if e.Color == "" {
		e.Color = DefaultEffectColor
	}
	if e.StrokeColor == "" {
		e.StrokeColor = DefaultStrokeColor
	}
	if e.Blur < 0 {
		e.Blur = 0
	}
	if e.StrokeWidth < 0 {
		e.StrokeWidth = 0
	}
	return e
}

// Transform is the placement of images and text: centre position, uniform
// scale and rotation in radians.
type Transform struct {
	X, Y float64
	S    float64
	R    float64
}

// Center returns the placement origin.
func (t Transform) Center() vector.Pt { return vector.Pt{X: t.X, Y: t.Y} }

// Object is one drawable unit. The set of implementations is closed: *Image,
// *Text and *Path.
type Object interface {
	ObjectID() string
	Kind() Kind
	clone() Object
}

// Image is a placed raster sticker. Bitmap is decoded once and shared by
// reference between history snapshots; it is never mutated.
type Image struct {
	ID      string
	Name    string
	Src     string
	Bitmap  image.Image
	W, H    float64
	Opacity float64
	Transform
}

// Text is a single line of text centred on its placement.
type Text struct {
	ID         string
	Text       string
	FontFamily string
	Size       float64
	Color      string
	Opacity    float64
	Effect     Effect
	Transform
}

// Path is a freehand stroke in scene coordinates, in stroke order.
type Path struct {
	ID      string
	Points  []vector.Pt
	Color   string
	Size    float64
	Opacity float64
	Effect  Effect
}

func (o *Image) ObjectID() string { return o.ID }
func (o *Text) ObjectID() string  { return o.ID }
func (o *Path) ObjectID() string  { return o.ID }

func (o *Image) Kind() Kind { return KindImage }
func (o *Text) Kind() Kind  { return KindText }
func (o *Path) Kind() Kind  { return KindPath }

func (o *Image) clone() Object {
	c := *o
	return &c
}

func (o *Text) clone() Object {
	c := *o
	return &c
}

func (o *Path) clone() Object {
	c := *o
	c.Points = append([]vector.Pt(nil), o.Points...)
	return &c
}

// Clone returns a deep copy of o; image bitmaps are shared.
func Clone(o Object) Object {
	if o == nil {
		return nil
	}
	return o.clone()
}

// PlacementOf returns the mutable placement of images and text. Paths have none.
func PlacementOf(o Object) (*Transform, bool) {
	switch v := o.(type) {
	case *Image:
		return &v.Transform, true
	case *Text:
		return &v.Transform, true
	case *Path:
		return nil, false
	default:
		return nil, false
	}
}

// Editable reports whether o takes part in selection and handle interaction.
func Editable(o Object) bool {
	switch o.(type) {
	case *Image, *Text:
		return true
	case *Path:
		return false
	default:
		return false
	}
}
