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

	"stickercanvas/internal/asset"
	"stickercanvas/internal/document"
	"stickercanvas/internal/scene"
	"stickercanvas/internal/typeid"
	"stickercanvas/internal/vector"
)

// GetState serializes the scene. The selection is not part of the document;
// the viewport is included only when it differs from identity.
func (s *Session) GetState() document.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := document.Scene{
		Template: s.templateURL,
		CanvasW:  s.width(),
		CanvasH:  s.height(),
		Objects:  make([]document.Object, 0, len(s.scene.Objects)),
	}
	if !s.view.IsIdentity() {
		out.ViewScale = document.F(s.view.Scale)
		out.ViewOffsetX = document.F(s.view.OffsetX)
		out.ViewOffsetY = document.F(s.view.OffsetY)
	}
	for _, o := range s.scene.Objects {
		out.Objects = append(out.Objects, toDocument(o))
	}
	return out
}

// SetState replaces the scene with doc. Every image is decoded concurrently;
// images that fail to decode are dropped and logged. Document order is kept.
// The template is loaded when it differs from the current one; a failed
// template load keeps the old template. On success the scene is redrawn once
// and history is reset to a single snapshot.
//
// A SetState started later supersedes this one: the earlier call then
// returns ErrSuperseded without touching the scene.
func (s *Session) SetState(ctx context.Context, doc document.Scene) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.scene = scene.Scene{}
	s.objectEdit = false
	s.gesture = nil
	clear(s.pointers)
	currentTemplate := s.templateURL
	center := vector.Pt{X: s.width() / 2, Y: s.height() / 2}
	s.unlock()

	norm := document.Normalize(doc, document.Defaults{
		CenterX: center.X,
		CenterY: center.Y,
		NewID:   newIDFor,
	})

	var urls []string
	for _, o := range norm.Objects {
		if o.Type == document.TypeImage {
			urls = append(urls, o.Src)
		}
	}
	if doc.Template != "" && doc.Template != currentTemplate {
		urls = append(urls, doc.Template)
	}
	results := asset.LoadAll(ctx, s.loader, urls)

	s.mu.Lock()
	defer s.unlock()
	if s.generation != gen {
		return ErrSuperseded
	}
	if doc.Template != "" && doc.Template != currentTemplate {
		tr := results[len(results)-1]
		results = results[:len(results)-1]
		if tr.OK() {
			s.template = tr.Image
			s.templateURL = doc.Template
		} else {
			s.log.Warn("template load failed", slog.String("url", doc.Template), slog.Any("err", tr.Err))
		}
	}

	objs := make([]scene.Object, 0, len(norm.Objects))
	next := 0
	for _, o := range norm.Objects {
		if o.Type != document.TypeImage {
			objs = append(objs, fromDocument(o))
			continue
		}
		r := results[next]
		next++
		if !r.OK() {
			s.log.Warn("image load failed", slog.String("id", o.ID), slog.String("src", o.Src), slog.Any("err", r.Err))
			continue
		}
		img := fromDocument(o).(*scene.Image)
		img.Bitmap = r.Image
		b := r.Image.Bounds()
		img.W, img.H = float64(b.Dx()), float64(b.Dy())
		objs = append(objs, img)
	}
	s.scene = scene.Scene{Objects: objs}

	s.view = scene.IdentityViewport()
	if doc.ViewScale != nil {
		s.view.Scale = scene.ClampViewScale(*doc.ViewScale)
		s.view.OffsetX = document.Float(doc.ViewOffsetX, 0)
		s.view.OffsetY = document.Float(doc.ViewOffsetY, 0)
		s.view.Clamp(scene.PaddedFrame(s.width(), s.height()))
		s.view.SnapIfClose()
	}

	s.redraw()
	s.history.Reset(s.scene.Clone())
	return nil
}

func newIDFor(objType string) string {
	switch objType {
	case document.TypeImage:
		return typeid.NewImageID()
	case document.TypeText:
		return typeid.NewTextID()
	default:
		return typeid.NewPathID()
	}
}

func toDocument(o scene.Object) document.Object {
	switch v := o.(type) {
	case *scene.Image:
		return document.Object{
			Type:    document.TypeImage,
			ID:      v.ID,
			Name:    document.Str(v.Name),
			Src:     v.Src,
			W:       document.F(v.W),
			H:       document.F(v.H),
			X:       document.F(v.X),
			Y:       document.F(v.Y),
			S:       document.F(v.S),
			R:       document.F(v.R),
			Opacity: document.F(v.Opacity),
		}
	case *scene.Text:
		d := document.Object{
			Type:       document.TypeText,
			ID:         v.ID,
			Text:       document.Str(v.Text),
			FontFamily: document.Str(v.FontFamily),
			Size:       document.F(v.Size),
			Color:      document.Str(v.Color),
			X:          document.F(v.X),
			Y:          document.F(v.Y),
			S:          document.F(v.S),
			R:          document.F(v.R),
			Opacity:    document.F(v.Opacity),
		}
		putEffect(&d, v.Effect)
		return d
	case *scene.Path:
		pts := make([]document.Point, len(v.Points))
		for i, p := range v.Points {
			pts[i] = document.Point{X: p.X, Y: p.Y}
		}
		d := document.Object{
			Type:    document.TypePath,
			ID:      v.ID,
			Points:  pts,
			Color:   document.Str(v.Color),
			Size:    document.F(v.Size),
			Opacity: document.F(v.Opacity),
		}
		putEffect(&d, v.Effect)
		return d
	default:
		panic(fmt.Sprintf("editor: unhandled object type %T", o))
	}
}

func putEffect(d *document.Object, e scene.Effect) {
	d.Effect = document.Str(string(e.Kind))
	d.EffectColor = document.Str(e.Color)
	d.EffectBlur = document.F(e.Blur)
	d.StrokeColor = document.Str(e.StrokeColor)
	d.StrokeWidth = document.F(e.StrokeWidth)
}

// fromDocument converts a normalized document object. Image bitmaps are left
// nil for the caller to fill.
func fromDocument(o document.Object) scene.Object {
	t := scene.Transform{
		X: document.Float(o.X, 0),
		Y: document.Float(o.Y, 0),
		S: document.Float(o.S, 1),
		R: document.Float(o.R, 0),
	}
	switch o.Type {
	case document.TypeImage:
		return &scene.Image{
			ID:        o.ID,
			Name:      document.String(o.Name, ""),
			Src:       o.ImageSource(),
			W:         document.Float(o.W, 0),
			H:         document.Float(o.H, 0),
			Opacity:   document.Float(o.Opacity, 1),
			Transform: t,
		}
	case document.TypeText:
		return &scene.Text{
			ID:         o.ID,
			Text:       document.String(o.Text, ""),
			FontFamily: document.String(o.FontFamily, scene.DefaultFontFamily),
			Size:       document.Float(o.Size, scene.DefaultFontSize),
			Color:      document.String(o.Color, scene.DefaultTextColor),
			Opacity:    document.Float(o.Opacity, 1),
			Effect:     effectOf(o),
			Transform:  t,
		}
	default:
		pts := make([]vector.Pt, len(o.Points))
		for i, p := range o.Points {
			pts[i] = vector.Pt{X: p.X, Y: p.Y}
		}
		return &scene.Path{
			ID:      o.ID,
			Points:  pts,
			Color:   document.String(o.Color, scene.DefaultPathColor),
			Size:    document.Float(o.Size, 1),
			Opacity: document.Float(o.Opacity, 1),
			Effect:  effectOf(o),
		}
	}
}

func effectOf(o document.Object) scene.Effect {
	return scene.Effect{
		Kind:        scene.EffectKind(document.String(o.Effect, string(scene.EffectNone))),
		Color:       document.String(o.EffectColor, ""),
		Blur:        document.Float(o.EffectBlur, 0),
		StrokeColor: document.String(o.StrokeColor, ""),
		StrokeWidth: document.Float(o.StrokeWidth, 0),
	}.Normalized()
}
