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
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"stickercanvas/internal/asset"
	"stickercanvas/internal/document"
	"stickercanvas/internal/scene"
	"stickercanvas/internal/undo"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func testLoader() asset.StaticLoader {
	return asset.StaticLoader{
		"a.png":    solid(100, 100, color.RGBA{R: 255, A: 255}),
		"b.png":    solid(40, 20, color.RGBA{G: 255, A: 255}),
		"tmpl.png": solid(64, 64, color.RGBA{B: 255, A: 255}),
	}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestSession(t *testing.T, l asset.Loader) *Session {
	t.Helper()
	s, err := New(Options{
		Width:  900,
		Height: 900,
		DPR:    1,
		Loader: l,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func undoSteps(s *Session) int {
	n, _ := s.history.Len()
	return n
}

func TestAddTextTrimsAndSelects(t *testing.T) {
	s := newTestSession(t, testLoader())
	if _, ok := s.AddText("   ", TextStyle{}); ok {
		t.Fatalf("blank text should be ignored")
	}
	if s.CanUndo() {
		t.Fatalf("blank text must not push history")
	}
	id, ok := s.AddText("  hello ", TextStyle{Color: "#ff0000"})
	if !ok || id == "" {
		t.Fatalf("AddText failed")
	}
	if s.SelectedID() != id {
		t.Fatalf("new text not selected")
	}
	txt := s.Objects()[0].(*scene.Text)
	if txt.Text != "hello" || txt.S != 1 || txt.X != 450 || txt.Y != 450 {
		t.Fatalf("unexpected text %+v", txt)
	}
	if txt.FontFamily != scene.DefaultFontFamily || txt.Size != scene.DefaultFontSize || txt.Color != "#ff0000" {
		t.Fatalf("unexpected style %+v", txt)
	}
	if undoSteps(s) != 1 {
		t.Fatalf("want 1 undo step, got %d", undoSteps(s))
	}
}

func TestAddAssetPlacesAtCentre(t *testing.T) {
	s := newTestSession(t, testLoader())
	id, err := s.AddAsset(context.Background(), "a.png", "モビィ")
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	img := s.Objects()[0].(*scene.Image)
	if img.ID != id || img.S != scene.DefaultImageScale || img.W != 100 || img.H != 100 || img.X != 450 {
		t.Fatalf("unexpected image %+v", img)
	}
	if s.SelectedID() != id {
		t.Fatalf("asset not selected")
	}
	if got := s.GetUsedAssetNames(); len(got) != 1 || got[0] != "モビィ" {
		t.Fatalf("used names %v", got)
	}
}

func TestAddAssetFailuresLeaveSceneAlone(t *testing.T) {
	s := newTestSession(t, testLoader())
	s.SetAssets([]asset.Asset{{URL: "a.png", Name: "locked", Locked: true}})
	if _, err := s.AddAsset(context.Background(), "a.png", "locked"); !errors.Is(err, asset.ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}
	if _, err := s.AddAsset(context.Background(), "missing.png", ""); !errors.Is(err, asset.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if len(s.Objects()) != 0 || s.CanUndo() {
		t.Fatalf("failed adds must not change the scene")
	}
}

func TestUndoRedo(t *testing.T) {
	s := newTestSession(t, testLoader())
	s.AddText("one", TextStyle{})
	s.AddText("two", TextStyle{})
	if !s.Undo() {
		t.Fatalf("undo failed")
	}
	if n := len(s.Objects()); n != 1 {
		t.Fatalf("after undo want 1 object, got %d", n)
	}
	if !s.CanRedo() {
		t.Fatalf("redo should be available")
	}
	s.Redo()
	if n := len(s.Objects()); n != 2 {
		t.Fatalf("after redo want 2 objects, got %d", n)
	}
	s.Undo()
	s.AddText("three", TextStyle{})
	if s.CanRedo() {
		t.Fatalf("a new mutation must clear redo")
	}
	s.Undo()
	s.Undo()
	if s.Undo() {
		t.Fatalf("undo past the baseline should fail")
	}
	if len(s.Objects()) != 0 {
		t.Fatalf("baseline should be empty")
	}
}

func TestHistoryListenerIsReentrant(t *testing.T) {
	s := newTestSession(t, testLoader())
	var got []undo.State
	var seen []string
	s.SetHistoryListener(func(st undo.State) {
		got = append(got, st)
		seen = append(seen, s.SelectedID())
	})
	if len(got) != 1 || got[0].CanUndo {
		t.Fatalf("listener should fire immediately with an empty stack, got %v", got)
	}
	id, _ := s.AddText("x", TextStyle{})
	if len(got) != 2 || !got[1].CanUndo || got[1].CanRedo {
		t.Fatalf("unexpected states %v", got)
	}
	if seen[1] != id {
		t.Fatalf("listener should observe the committed selection")
	}
	s.Undo()
	if last := got[len(got)-1]; last.CanUndo || !last.CanRedo {
		t.Fatalf("unexpected state after undo %v", last)
	}
}

func TestRemoveByID(t *testing.T) {
	s := newTestSession(t, testLoader())
	id, _ := s.AddText("x", TextStyle{})
	steps := undoSteps(s)
	if s.RemoveByID("nope") || undoSteps(s) != steps {
		t.Fatalf("unknown id must be a no-op")
	}
	if !s.RemoveByID(id) {
		t.Fatalf("remove failed")
	}
	if s.SelectedID() != "" || len(s.Objects()) != 0 {
		t.Fatalf("remove should drop object and selection")
	}
}

func TestClearAll(t *testing.T) {
	s := newTestSession(t, testLoader())
	s.AddText("x", TextStyle{})
	s.ClearAll()
	if len(s.Objects()) != 0 || s.SelectedID() != "" {
		t.Fatalf("ClearAll left state behind")
	}
	s.Undo()
	if len(s.Objects()) != 1 {
		t.Fatalf("ClearAll should be undoable")
	}
}

func TestUpsertImage(t *testing.T) {
	s := newTestSession(t, testLoader())
	ctx := context.Background()
	x := 100.0
	id, err := s.UpsertImage(ctx, ImageSpec{ID: "img_1", Src: "a.png", Name: "a", X: &x})
	if err != nil || id != "img_1" {
		t.Fatalf("create: %q %v", id, err)
	}
	img := s.Objects()[0].(*scene.Image)
	if img.X != 100 || img.Y != 450 || img.S != scene.DefaultImageScale {
		t.Fatalf("create layout %+v", img)
	}

	// layout is ignored for an existing object unless forced
	x2 := 300.0
	op := 0.5
	s.UpsertImage(ctx, ImageSpec{ID: "img_1", Src: "a.png", X: &x2, Opacity: &op})
	img = s.Objects()[0].(*scene.Image)
	if img.X != 100 || img.Opacity != 0.5 || img.Name != "a" {
		t.Fatalf("unforced update %+v", img)
	}
	s.UpsertImage(ctx, ImageSpec{ID: "img_1", Src: "a.png", X: &x2, ForceLayout: true})
	if img = s.Objects()[0].(*scene.Image); img.X != 300 {
		t.Fatalf("forced layout not applied %+v", img)
	}

	// a new source reloads and keeps the slot
	s.UpsertImage(ctx, ImageSpec{ID: "img_1", Src: "b.png"})
	img = s.Objects()[0].(*scene.Image)
	if img.Src != "b.png" || img.W != 40 || img.H != 20 || len(s.Objects()) != 1 {
		t.Fatalf("reload %+v", img)
	}

	if _, err := s.UpsertImage(ctx, ImageSpec{ID: "img_2", Src: "missing.png"}); err == nil {
		t.Fatalf("expected load error")
	}
	if len(s.Objects()) != 1 {
		t.Fatalf("failed upsert must not add")
	}

	s.UpsertImage(ctx, ImageSpec{ID: "img_1"})
	if len(s.Objects()) != 0 {
		t.Fatalf("empty src should remove")
	}
}

func TestUpsertText(t *testing.T) {
	s := newTestSession(t, testLoader())
	y := 120.0
	id := s.UpsertText(TextSpec{ID: "txt_1", Text: " hi ", Y: &y, TextStyle: TextStyle{Effect: &scene.Effect{Kind: scene.EffectGlow, Blur: 8}}})
	txt := s.Objects()[0].(*scene.Text)
	if id != "txt_1" || txt.Text != "hi" || txt.Y != 120 || txt.Effect.Kind != scene.EffectGlow {
		t.Fatalf("create %+v", txt)
	}
	y2 := 500.0
	s.UpsertText(TextSpec{ID: "txt_1", Text: "yo", Y: &y2, TextStyle: TextStyle{Size: 48}})
	txt = s.Objects()[0].(*scene.Text)
	if txt.Text != "yo" || txt.Size != 48 || txt.Y != 120 {
		t.Fatalf("update %+v", txt)
	}
	if txt.Effect.Kind != scene.EffectNone {
		t.Fatalf("an update without effect resets it, got %v", txt.Effect.Kind)
	}
	s.UpsertText(TextSpec{ID: "txt_1", Text: "  "})
	if len(s.Objects()) != 0 {
		t.Fatalf("blank text should remove")
	}
}

func TestApplyTextStyleToSelected(t *testing.T) {
	s := newTestSession(t, testLoader())
	s.AddText("x", TextStyle{Color: "#ffffff"})
	steps := undoSteps(s)
	if s.ApplyTextStyleToSelected(TextStyle{Color: "#ffffff"}) {
		t.Fatalf("same colour should not count as a change")
	}
	if undoSteps(s) != steps {
		t.Fatalf("no-op style must not push")
	}
	if !s.ApplyTextStyleToSelected(TextStyle{Color: "#000000", Size: 20}) {
		t.Fatalf("style change not applied")
	}
	txt := s.Objects()[0].(*scene.Text)
	if txt.Color != "#000000" || txt.Size != 20 || undoSteps(s) != steps+1 {
		t.Fatalf("unexpected %+v", txt)
	}
	if !s.UpdateSelectedText("new") || s.Objects()[0].(*scene.Text).Text != "new" {
		t.Fatalf("UpdateSelectedText failed")
	}
}

func TestSetStateKeepsOrderAndDropsFailures(t *testing.T) {
	s := newTestSession(t, testLoader())
	s.AddText("old", TextStyle{})
	doc := document.Scene{
		Template: "tmpl.png",
		Objects: []document.Object{
			{Type: document.TypeImage, ID: "img_a", Src: "a.png", X: document.F(10)},
			{Type: document.TypeText, ID: "txt_a", Text: document.Str("t")},
			{Type: document.TypeImage, ID: "img_bad", Src: "missing.png"},
			{Type: document.TypeImage, ID: "img_b", URL: "b.png"},
			{Type: document.TypePath, ID: "path_a", Points: []document.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}},
		},
	}
	if err := s.SetState(context.Background(), doc); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	objs := s.Objects()
	var ids []string
	for _, o := range objs {
		ids = append(ids, o.ObjectID())
	}
	want := []string{"img_a", "txt_a", "img_b", "path_a"}
	if len(ids) != len(want) {
		t.Fatalf("ids %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids %v, want %v", ids, want)
		}
	}
	if b := objs[2].(*scene.Image); b.W != 40 || b.H != 20 || b.Src != "b.png" {
		t.Fatalf("image size should come from the bitmap: %+v", b)
	}
	if s.TemplateURL() != "tmpl.png" {
		t.Fatalf("template not installed")
	}
	if s.CanUndo() || s.CanRedo() || s.SelectedID() != "" {
		t.Fatalf("SetState should reset history and selection")
	}
}

func TestSetStateRoundTrip(t *testing.T) {
	s := newTestSession(t, testLoader())
	ctx := context.Background()
	s.AddAsset(ctx, "a.png", "a")
	s.AddText("hello", TextStyle{Effect: &scene.Effect{Kind: scene.EffectShadow, Blur: 10}})
	before := s.Objects()
	if err := s.SetState(ctx, s.GetState()); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	after := s.Objects()
	if len(after) != len(before) {
		t.Fatalf("round trip changed length")
	}
	bi, ai := before[0].(*scene.Image), after[0].(*scene.Image)
	if bi.ID != ai.ID || bi.Transform != ai.Transform || bi.W != ai.W || bi.Src != ai.Src {
		t.Fatalf("image changed: %+v vs %+v", bi, ai)
	}
	if *before[1].(*scene.Text) != *after[1].(*scene.Text) {
		t.Fatalf("text changed: %+v vs %+v", before[1], after[1])
	}
}

type gateLoader struct {
	asset.StaticLoader
	slow    string
	entered chan struct{}
	release chan struct{}
}

func (g *gateLoader) Load(ctx context.Context, url string) (image.Image, error) {
	if url == g.slow {
		close(g.entered)
		<-g.release
	}
	return g.StaticLoader.Load(ctx, url)
}

func TestSetStateSuperseded(t *testing.T) {
	gl := &gateLoader{
		StaticLoader: testLoader(),
		slow:         "a.png",
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	s := newTestSession(t, gl)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		errc <- s.SetState(ctx, document.Scene{Objects: []document.Object{
			{Type: document.TypeImage, ID: "img_slow", Src: "a.png"},
		}})
	}()
	<-gl.entered
	if err := s.SetState(ctx, document.Scene{Objects: []document.Object{
		{Type: document.TypeImage, ID: "img_fast", Src: "b.png"},
	}}); err != nil {
		t.Fatalf("second SetState: %v", err)
	}
	close(gl.release)
	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("want ErrSuperseded, got %v", err)
	}
	objs := s.Objects()
	if len(objs) != 1 || objs[0].ObjectID() != "img_fast" {
		t.Fatalf("superseded load leaked into scene: %v", objs)
	}
}

func TestSetStateRestoresViewport(t *testing.T) {
	s := newTestSession(t, testLoader())
	doc := document.Scene{ViewScale: document.F(1.5), ViewOffsetX: document.F(-100), ViewOffsetY: document.F(-50)}
	if err := s.SetState(context.Background(), doc); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	v := s.View()
	if v.Scale != 1.5 || v.OffsetX != -100 || v.OffsetY != -50 {
		t.Fatalf("viewport %+v", v)
	}
	st := s.GetState()
	if st.ViewScale == nil || *st.ViewScale != 1.5 {
		t.Fatalf("GetState should persist a non-identity viewport")
	}
	s.SetState(context.Background(), document.Scene{})
	if !s.View().IsIdentity() {
		t.Fatalf("a document without viewport resets to identity")
	}
	if s.GetState().ViewScale != nil {
		t.Fatalf("identity viewport should be omitted")
	}
}

func TestSetStateSnapsNearIdentityViewport(t *testing.T) {
	s := newTestSession(t, testLoader())
	doc := document.Scene{ViewScale: document.F(1.02), ViewOffsetX: document.F(-10), ViewOffsetY: document.F(-5)}
	if err := s.SetState(context.Background(), doc); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if v := s.View(); !v.IsIdentity() {
		t.Fatalf("viewport %+v should snap to identity", v)
	}
	if s.GetState().ViewScale != nil {
		t.Fatalf("snapped viewport should not be persisted")
	}
}

func TestSetStateMakesIDsUnique(t *testing.T) {
	s := newTestSession(t, testLoader())
	doc := document.Scene{Objects: []document.Object{
		{Type: document.TypeText, ID: "a", Text: document.Str("one")},
		{Type: document.TypeText, ID: "a", Text: document.Str("two")},
	}}
	if err := s.SetState(context.Background(), doc); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	objs := s.Objects()
	if len(objs) != 2 || objs[0].ObjectID() == objs[1].ObjectID() {
		t.Fatalf("expected two objects with distinct ids, got %v", objs)
	}
	if !s.RemoveByID("a") {
		t.Fatalf("RemoveByID(a) = false")
	}
	for _, o := range s.Objects() {
		if o.ObjectID() == "a" {
			t.Fatalf("id a still present after removal")
		}
	}
	if n := len(s.Objects()); n != 1 {
		t.Fatalf("expected 1 object left, got %d", n)
	}
}
