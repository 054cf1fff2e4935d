/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout resolves font families to faces and measures single
// lines of text. The same Library backs hit testing, handle placement and
// drawing so their bounds always agree.
package textlayout

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// Library stores parsed font sources keyed by family name. Families that were
// never registered resolve to the embedded Go Regular face. It is safe for
// concurrent use.
type Library struct {
	mu       sync.RWMutex
	sources  map[string]*text.FontSource
	fallback *text.FontSource
	faces    map[faceKey]text.Face
}

type faceKey struct {
	family string
	size   float64
}

// NewLibrary returns a library holding only the fallback face.
func NewLibrary() (*Library, error) {
	fb, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse fallback font: %w", err)
	}
	return &Library{
		sources:  make(map[string]*text.FontSource),
		fallback: fb,
		faces:    make(map[faceKey]text.Face),
	}, nil
}

// Register parses data as TTF/OTF and binds it to family, replacing any
// previous binding.
func (l *Library) Register(family string, data []byte) error {
	src, err := text.NewFontSource(data)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", family, err)
	}
	key := normalizeFamily(family)
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.sources[key]; ok {
		_ = old.Close()
	}
	l.sources[key] = src
	for k := range l.faces {
		if k.family == key {
			delete(l.faces, k)
		}
	}
	return nil
}

// LoadFile reads a font file from disk and registers it under family.
func (l *Library) LoadFile(family, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return l.Register(family, data)
}

// Has reports whether family was registered explicitly.
func (l *Library) Has(family string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.sources[normalizeFamily(family)]
	return ok
}

// Face returns the face for family at size px. Sizes are quantised to a
// hundredth of a pixel for caching.
func (l *Library) Face(family string, size float64) text.Face {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		size = 1
	}
	key := faceKey{family: normalizeFamily(family), size: math.Round(size*100) / 100}

	l.mu.RLock()
	f, ok := l.faces[key]
	l.mu.RUnlock()
	if ok {
		return f
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.faces[key]; ok {
		return f
	}
	src := l.sources[key.family]
	if src == nil {
		src = l.fallback
	}
	f = src.Face(key.size)
	l.faces[key] = f
	return f
}

// Measure returns the advance width of s set in family at size px.
func (l *Library) Measure(family string, size float64, s string) float64 {
	if s == "" {
		return 0
	}
	return l.Face(family, size).Advance(s)
}

// LineHeight returns ascent+descent+gap for family at size px.
func (l *Library) LineHeight(family string, size float64) float64 {
	return l.Face(family, size).Metrics().LineHeight()
}

// Close releases every parsed source.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, s := range l.sources {
		_ = s.Close()
		delete(l.sources, k)
	}
	l.faces = make(map[faceKey]text.Face)
	if l.fallback != nil {
		_ = l.fallback.Close()
		l.fallback = nil
	}
	return nil
}

func normalizeFamily(family string) string {
	f := strings.TrimSpace(family)
	f = strings.Trim(f, `"'`)
	return strings.ToLower(f)
}
