/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package document defines the persisted shape of a composition and the
// envelopes it travels in: the local draft and the remote design record.
package document

// Scene is the serialized composition. Optional fields are pointers so that
// absence can be told apart from zero.
type Scene struct {
	Template    string   `json:"template"`
	CanvasW     float64  `json:"canvasW"`
	CanvasH     float64  `json:"canvasH"`
	ViewScale   *float64 `json:"viewScale,omitempty"`
	ViewOffsetX *float64 `json:"viewOffsetX,omitempty"`
	ViewOffsetY *float64 `json:"viewOffsetY,omitempty"`
	Objects     []Object `json:"objects"`
}

// Object types.
const (
	TypeImage = "img"
	TypeText  = "text"
	TypePath  = "path"
)

// Point is one path vertex in scene space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is the flat union of every object variant, discriminated by Type.
type Object struct {
	Type string `json:"type"`
	ID   string `json:"id"`

	// img
	Name *string `json:"name,omitempty"`
	Src  string  `json:"src,omitempty"`
	// URL is the legacy spelling of Src accepted on input.
	URL string   `json:"url,omitempty"`
	W   *float64 `json:"w,omitempty"`
	H   *float64 `json:"h,omitempty"`

	// img, text
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	S *float64 `json:"s,omitempty"`
	R *float64 `json:"r,omitempty"`

	// text
	Text       *string `json:"text,omitempty"`
	FontFamily *string `json:"fontFamily,omitempty"`

	// path
	Points []Point `json:"points,omitempty"`

	// text, path
	Size        *float64 `json:"size,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Effect      *string  `json:"effect,omitempty"`
	EffectColor *string  `json:"effectColor,omitempty"`
	EffectBlur  *float64 `json:"effectBlur,omitempty"`
	StrokeColor *string  `json:"strokeColor,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`

	Opacity *float64 `json:"opacity,omitempty"`
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// Str returns a pointer to v.
func Str(v string) *string { return &v }

// Float dereferences p, or returns def when p is nil.
func Float(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// String dereferences p, or returns def when p is nil or empty.
func String(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// ImageSource returns Src, falling back to the legacy URL field.
func (o Object) ImageSource() string {
	if o.Src != "" {
		return o.Src
	}
	return o.URL
}
