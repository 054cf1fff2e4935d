/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument wraps every parse or schema failure.
var ErrInvalidDocument = errors.New("invalid scene document")

//go:embed scene.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// SchemaJSON returns the embedded JSON Schema of a scene document.
func SchemaJSON() []byte { return append([]byte(nil), schemaJSON...) }

// Validate checks raw against the scene schema.
func Validate(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile scene schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return nil
}

// Decode validates raw and unmarshals it.
func Decode(raw []byte) (Scene, error) {
	if err := Validate(raw); err != nil {
		return Scene{}, err
	}
	var s Scene
	if err := json.Unmarshal(raw, &s); err != nil {
		return Scene{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return s, nil
}

// Encode marshals s as indented JSON.
func Encode(s Scene) ([]byte, error) {
	if s.Objects == nil {
		s.Objects = []Object{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// Defaults supplies the context-dependent values Normalize needs.
type Defaults struct {
	// CenterX, CenterY is where objects without a position are placed.
	CenterX, CenterY float64
	// NewID mints an id for objects that arrive without one or with an id
	// already taken. Nil leaves missing ids empty and drops duplicates.
	NewID func(objType string) string
}

// Normalize returns a copy of s in which every object carries every field of
// its variant. Objects of unknown type and images without a source are
// dropped. Image natural size is left as given; callers replace it once the
// bitmap is decoded. Ids are unique in the result: the first object keeps a
// repeated id and later ones get a fresh one.
func Normalize(s Scene, d Defaults) Scene {
	out := s
	out.Objects = make([]Object, 0, len(s.Objects))
	seen := make(map[string]bool, len(s.Objects))
	for _, o := range s.Objects {
		n, ok := normalizeObject(o, d)
		if !ok {
			continue
		}
		if n.ID != "" && seen[n.ID] {
			if n.ID, ok = freshID(n.Type, seen, d); !ok {
				continue
			}
		}
		if n.ID != "" {
			seen[n.ID] = true
		}
		out.Objects = append(out.Objects, n)
	}
	return out
}

func freshID(objType string, seen map[string]bool, d Defaults) (string, bool) {
	if d.NewID == nil {
		return "", false
	}
	for range 8 {
		if id := d.NewID(objType); id != "" && !seen[id] {
			return id, true
		}
	}
	return "", false
}

func normalizeObject(o Object, d Defaults) (Object, bool) {
	id := o.ID
	if id == "" && d.NewID != nil {
		id = d.NewID(o.Type)
	}
	switch o.Type {
	case TypeImage:
		src := o.ImageSource()
		if src == "" {
			return Object{}, false
		}
		return Object{
			Type:    TypeImage,
			ID:      id,
			Name:    Str(String(o.Name, "")),
			Src:     src,
			X:       F(finite(o.X, d.CenterX)),
			Y:       F(finite(o.Y, d.CenterY)),
			S:       F(finite(o.S, 0.35)),
			R:       F(finite(o.R, 0)),
			Opacity: F(finite(o.Opacity, 1)),
			W:       F(finite(o.W, 0)),
			H:       F(finite(o.H, 0)),
		}, true
	case TypeText:
		n := Object{
			Type:       TypeText,
			ID:         id,
			Text:       Str(String(o.Text, "")),
			FontFamily: Str(String(o.FontFamily, "Noto Sans JP")),
			Size:       F(finite(o.Size, 36)),
			Color:      Str(String(o.Color, "#ffffff")),
			X:          F(finite(o.X, d.CenterX)),
			Y:          F(finite(o.Y, d.CenterY)),
			S:          F(finite(o.S, 1)),
			R:          F(finite(o.R, 0)),
			Opacity:    F(finite(o.Opacity, 1)),
		}
		setEffect(&n, o)
		return n, true
	case TypePath:
		n := Object{
			Type:    TypePath,
			ID:      id,
			Points:  append([]Point{}, o.Points...),
			Color:   Str(String(o.Color, "#000000")),
			Size:    F(positive(o.Size, 1)),
			Opacity: F(finite(o.Opacity, 1)),
		}
		setEffect(&n, o)
		return n, true
	default:
		return Object{}, false
	}
}

func setEffect(dst *Object, src Object) {
	dst.Effect = Str(String(src.Effect, "none"))
	dst.EffectColor = Str(String(src.EffectColor, "#00f5ff"))
	dst.EffectBlur = F(positive(src.EffectBlur, 0))
	dst.StrokeColor = Str(String(src.StrokeColor, "#000000"))
	dst.StrokeWidth = F(positive(src.StrokeWidth, 0))
}

func finite(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return def
	}
	return *p
}

// positive treats zero like absence, matching `Number(x || def)`.
func positive(p *float64, def float64) float64 {
	v := finite(p, def)
	if v == 0 {
		return def
	}
	return v
}
