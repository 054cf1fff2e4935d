/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"stickercanvas/internal/scene"
	"stickercanvas/internal/typeid"
)

// TextStyle carries optional text attributes. Zero strings, non-positive
// sizes and nil pointers leave the attribute unchanged or defaulted.
type TextStyle struct {
	FontFamily string
	Size       float64
	Color      string
	Opacity    *float64
	R          *float64
	Effect     *scene.Effect
}

// ImageSpec describes an image to create or update by id.
type ImageSpec struct {
	ID   string
	Src  string
	Name string
	// X, Y, S and R are applied when the image is new or ForceLayout is set.
	X, Y, S, R  *float64
	Opacity     *float64
	ForceLayout bool
}

// TextSpec describes a text object to create or update by id.
type TextSpec struct {
	ID   string
	Text string
	TextStyle
	// X and Y are applied when the text is new or ForceLayout is set.
	X, Y        *float64
	ForceLayout bool
}

func finiteOr(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return def
	}
	return *p
}

func setFinite(dst *float64, p *float64) {
	if p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) {
		*dst = *p
	}
}

// AddText appends a text object at the canvas centre and selects it. Text
// that is empty after trimming is ignored.
func (s *Session) AddText(text string, style TextStyle) (string, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.unlock()
	o := s.newText(typeid.NewTextID(), t, style)
	s.scene.Append(o)
	s.selectObject(o.ID)
	s.commit()
	return o.ID, true
}

func (s *Session) newText(id, text string, style TextStyle) *scene.Text {
	family := style.FontFamily
	if family == "" {
		family = scene.DefaultFontFamily
	}
	size := float64(scene.DefaultFontSize)
	if style.Size > 0 {
		size = style.Size
	}
	color := style.Color
	if color == "" {
		color = scene.DefaultTextColor
	}
	eff := scene.DefaultEffect()
	if style.Effect != nil {
		eff = style.Effect.Normalized()
	}
	return &scene.Text{
		ID:         id,
		Text:       text,
		FontFamily: family,
		Size:       size,
		Color:      color,
		Opacity:    finiteOr(style.Opacity, 1),
		Effect:     eff,
		Transform: scene.Transform{
			X: s.width() / 2,
			Y: s.height() / 2,
			S: defaultTextScale,
			R: finiteOr(style.R, 0),
		},
	}
}

// AddAsset decodes url and places it at the canvas centre at the default
// scale, selected. Locked catalog entries are refused with asset.ErrLocked.
// A decode failure is logged and returned; the scene is left unchanged.
func (s *Session) AddAsset(ctx context.Context, url, name string) (string, error) {
	if err := s.catalog.CheckPlaceable(url, name); err != nil {
		return "", err
	}
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	img, err := s.loader.Load(ctx, url)
	if err != nil {
		s.log.Warn("asset load failed", slog.String("url", url), slog.Any("err", err))
		return "", fmt.Errorf("add asset: %w", err)
	}

	s.mu.Lock()
	defer s.unlock()
	if s.generation != gen {
		return "", ErrSuperseded
	}
	b := img.Bounds()
	o := &scene.Image{
		ID:      typeid.NewImageID(),
		Name:    name,
		Src:     url,
		Bitmap:  img,
		W:       float64(b.Dx()),
		H:       float64(b.Dy()),
		Opacity: 1,
		Transform: scene.Transform{
			X: s.width() / 2,
			Y: s.height() / 2,
			S: defaultImageScale,
		},
	}
	s.scene.Append(o)
	s.selectObject(o.ID)
	s.commit()
	return o.ID, nil
}

// UpsertImage creates or updates the image with spec.ID. An empty Src
// removes an existing object of that id. When the id already holds an image
// with the same Src no decode happens. Layout fields apply only to new
// objects unless ForceLayout is set. It returns the id acted on.
func (s *Session) UpsertImage(ctx context.Context, spec ImageSpec) (string, error) {
	id := spec.ID
	if id == "" {
		id = typeid.NewImageID()
	}

	s.mu.Lock()
	existing := s.scene.Find(id)
	layout := spec.ForceLayout || existing == nil
	if spec.Src == "" {
		if existing != nil {
			s.removeLocked(id)
		}
		s.unlock()
		return "", nil
	}
	if cur, ok := existing.(*scene.Image); ok && cur.Src == spec.Src {
		applyImageSpec(cur, spec, layout)
		s.commit()
		s.unlock()
		return id, nil
	}
	gen := s.generation
	s.mu.Unlock()

	img, err := s.loader.Load(ctx, spec.Src)
	if err != nil {
		s.log.Warn("image load failed", slog.String("id", id), slog.String("src", spec.Src), slog.Any("err", err))
		return "", fmt.Errorf("upsert image: %w", err)
	}

	s.mu.Lock()
	defer s.unlock()
	if s.generation != gen {
		return "", ErrSuperseded
	}
	b := img.Bounds()
	if cur, ok := s.scene.Find(id).(*scene.Image); ok {
		cur.Bitmap = img
		cur.Src = spec.Src
		cur.W, cur.H = float64(b.Dx()), float64(b.Dy())
		applyImageSpec(cur, spec, layout)
		s.commit()
		return id, nil
	}
	o := &scene.Image{
		ID:      id,
		Name:    spec.Name,
		Src:     spec.Src,
		Bitmap:  img,
		W:       float64(b.Dx()),
		H:       float64(b.Dy()),
		Opacity: finiteOr(spec.Opacity, 1),
		Transform: scene.Transform{
			X: finiteOr(spec.X, s.width()/2),
			Y: finiteOr(spec.Y, s.height()/2),
			S: finiteOr(spec.S, defaultImageScale),
			R: finiteOr(spec.R, 0),
		},
	}
	s.putObject(o)
	s.commit()
	return id, nil
}

func applyImageSpec(o *scene.Image, spec ImageSpec, layout bool) {
	if spec.Name != "" {
		o.Name = spec.Name
	}
	setFinite(&o.Opacity, spec.Opacity)
	if layout {
		setFinite(&o.X, spec.X)
		setFinite(&o.Y, spec.Y)
		setFinite(&o.S, spec.S)
		setFinite(&o.R, spec.R)
	}
}

// putObject replaces the object holding o's id in place, or appends o.
func (s *Session) putObject(o scene.Object) {
	if i := s.scene.IndexOf(o.ObjectID()); i >= 0 {
		s.scene.Objects[i] = o
		return
	}
	s.scene.Append(o)
}

// UpsertText creates or updates the text with spec.ID. Text that is empty
// after trimming removes an existing object of that id. The effect is
// replaced on every update; a nil Effect resets it. It returns the id.
func (s *Session) UpsertText(spec TextSpec) string {
	id := spec.ID
	if id == "" {
		id = typeid.NewTextID()
	}
	text := strings.TrimSpace(spec.Text)

	s.mu.Lock()
	defer s.unlock()
	existing := s.scene.Find(id)
	if text == "" {
		if existing != nil {
			s.removeLocked(id)
		}
		return id
	}
	layout := spec.ForceLayout || existing == nil
	if cur, ok := existing.(*scene.Text); ok {
		cur.Text = text
		if spec.FontFamily != "" {
			cur.FontFamily = spec.FontFamily
		}
		if spec.Size > 0 {
			cur.Size = spec.Size
		}
		if spec.Color != "" {
			cur.Color = spec.Color
		}
		setFinite(&cur.Opacity, spec.Opacity)
		setFinite(&cur.R, spec.R)
		if layout {
			setFinite(&cur.X, spec.X)
			setFinite(&cur.Y, spec.Y)
		}
		cur.Effect = scene.DefaultEffect()
		if spec.Effect != nil {
			cur.Effect = spec.Effect.Normalized()
		}
		s.commit()
		return id
	}
	o := s.newText(id, text, spec.TextStyle)
	setFinite(&o.X, spec.X)
	setFinite(&o.Y, spec.Y)
	s.putObject(o)
	s.commit()
	return id
}

// RemoveByID deletes the object with id and clears the selection if it was
// selected. Unknown ids are ignored.
func (s *Session) RemoveByID(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.unlock()
	return s.removeLocked(id)
}

func (s *Session) removeLocked(id string) bool {
	if !s.scene.Remove(id) {
		return false
	}
	if s.scene.SelectedID == "" {
		s.objectEdit = false
	}
	s.commit()
	return true
}

// ClearAll empties the scene.
func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.unlock()
	s.scene.Objects = nil
	s.clearSelection()
	s.commit()
}

// ApplyTextStyleToSelected merges style into the selected text object. It
// reports whether anything changed; only a change is recorded in history.
func (s *Session) ApplyTextStyleToSelected(style TextStyle) bool {
	s.mu.Lock()
	defer s.unlock()
	t, ok := s.scene.Selected().(*scene.Text)
	if !ok {
		return false
	}
	before := *t
	if style.Color != "" {
		t.Color = style.Color
	}
	if style.FontFamily != "" {
		t.FontFamily = style.FontFamily
	}
	if style.Size > 0 {
		t.Size = style.Size
	}
	setFinite(&t.R, style.R)
	setFinite(&t.Opacity, style.Opacity)
	if style.Effect != nil {
		t.Effect = style.Effect.Normalized()
	}
	if *t == before {
		return false
	}
	s.commit()
	return true
}

// UpdateSelectedText replaces the content of the selected text object. It
// reports false when no text object is selected.
func (s *Session) UpdateSelectedText(text string) bool {
	s.mu.Lock()
	defer s.unlock()
	t, ok := s.scene.Selected().(*scene.Text)
	if !ok {
		return false
	}
	if t.Text == text {
		return true
	}
	t.Text = text
	s.commit()
	return true
}
