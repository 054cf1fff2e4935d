/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"math"
	"testing"

	"stickercanvas/internal/vector"
)

func linePath(id string, n int) *Path {
	pts := make([]vector.Pt, n)
	for i := range pts {
		pts[i] = vector.Pt{X: float64(i * 10)}
	}
	return &Path{ID: id, Points: pts, Color: "#000000", Size: 4, Opacity: 1, Effect: DefaultEffect()}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("path_new%d", n)
	}
}

func TestEraseSplitsInteriorSegment(t *testing.T) {
	objs := []Object{linePath("path_orig", 10)}
	next, changed := EraseAt(objs, vector.Pt{X: 40}, 1, seqIDs())
	if !changed {
		t.Fatalf("expected change")
	}
	if len(next) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(next))
	}
	a, b := next[0].(*Path), next[1].(*Path)
	if a.ID == "path_orig" || b.ID == "path_orig" || a.ID == b.ID {
		t.Fatalf("pieces must carry fresh distinct ids: %q %q", a.ID, b.ID)
	}
	if len(a.Points) != 4 || a.Points[3].X != 30 {
		t.Fatalf("first piece: %+v", a.Points)
	}
	if len(b.Points) != 4 || b.Points[0].X != 60 || b.Points[3].X != 90 {
		t.Fatalf("second piece: %+v", b.Points)
	}
	if a.Color != "#000000" || b.Size != 4 {
		t.Fatalf("style not carried over")
	}
	// original untouched
	if got := len(objs[0].(*Path).Points); got != 10 {
		t.Fatalf("input mutated: %d points", got)
	}
}

func TestEraseWholePathLeavesNothing(t *testing.T) {
	objs := []Object{linePath("p", 3)}
	next, changed := EraseAt(objs, vector.Pt{X: 10}, 50, seqIDs())
	if !changed || len(next) != 0 {
		t.Fatalf("expected full removal, got changed=%v len=%d", changed, len(next))
	}
}

func TestEraseMissKeepsIdentity(t *testing.T) {
	img := &Image{ID: "img_a", W: 10, H: 10, Transform: Transform{S: 1}}
	objs := []Object{linePath("p", 5), img}
	next, changed := EraseAt(objs, vector.Pt{X: 500, Y: 500}, 5, seqIDs())
	if changed {
		t.Fatalf("unexpected change")
	}
	if len(next) != 2 || next[0].ObjectID() != "p" || next[1] != Object(img) {
		t.Fatalf("objects reordered or replaced")
	}
}

func TestEraseDropsSinglePointRemnant(t *testing.T) {
	objs := []Object{linePath("p", 4)}
	// removes point 1 and point 2 (incoming segment), leaving [0] and [3]
	next, changed := EraseAt(objs, vector.Pt{X: 10}, 1, seqIDs())
	if !changed || len(next) != 0 {
		t.Fatalf("single-point runs must vanish, got %d objects", len(next))
	}
}

func TestViewportSnap(t *testing.T) {
	for _, s := range []float64{0.98, 0.99, 1.0, 1.02} {
		v := Viewport{Scale: 1.5, OffsetX: 40, OffsetY: -12}
		v.ZoomAt(s, 100, 100)
		if v != IdentityViewport() {
			t.Fatalf("scale %v: expected identity, got %+v", s, v)
		}
	}
	v := Viewport{Scale: 1.02, OffsetX: 3, OffsetY: 4}
	if !v.SnapIfClose() || !v.IsIdentity() {
		t.Fatalf("SnapIfClose: %+v", v)
	}
	v = Viewport{Scale: 1.2}
	if v.SnapIfClose() {
		t.Fatalf("1.2 must not snap")
	}
}

func TestViewportZoomKeepsAnchor(t *testing.T) {
	v := IdentityViewport()
	anchor := vector.Pt{X: 120, Y: 80}
	before := v.ToScene(anchor)
	v.ZoomAt(2, anchor.X, anchor.Y)
	after := v.ToScene(anchor)
	if math.Abs(before.X-after.X) > 1e-9 || math.Abs(before.Y-after.Y) > 1e-9 {
		t.Fatalf("anchor drifted: %+v -> %+v", before, after)
	}
	v.ZoomAt(10, 0, 0)
	if v.Scale != MaxViewScale {
		t.Fatalf("zoom not clamped: %v", v.Scale)
	}
	v.ZoomAt(0.1, 0, 0)
	if v.Scale != MinViewScale {
		t.Fatalf("zoom not clamped: %v", v.Scale)
	}
}

func TestViewportRoundTrip(t *testing.T) {
	v := Viewport{Scale: 1.8, OffsetX: -30, OffsetY: 12}
	p := vector.Pt{X: 33, Y: 71}
	q := v.ToScene(v.ToScreen(p))
	if math.Abs(p.X-q.X) > 1e-9 || math.Abs(p.Y-q.Y) > 1e-9 {
		t.Fatalf("round trip: %+v != %+v", p, q)
	}
	m := v.Matrix().Apply(p)
	s := v.ToScreen(p)
	if math.Abs(m.X-s.X) > 1e-9 || math.Abs(m.Y-s.Y) > 1e-9 {
		t.Fatalf("matrix disagrees: %+v vs %+v", m, s)
	}
}

func TestViewportPanClamped(t *testing.T) {
	frame := PaddedFrame(1000, 1000)
	v := Viewport{Scale: 2}
	v.Pan(1e6, -1e6, frame)
	tl := v.ToScreen(frame.Min())
	br := v.ToScreen(frame.Max())
	if tl.X > frame.X+frame.W || br.Y < frame.Y {
		t.Fatalf("frame scrolled out: tl=%+v br=%+v", tl, br)
	}
	v = IdentityViewport()
	v.Pan(5, 5, frame)
	if v.OffsetX != 5 || v.OffsetY != 5 {
		t.Fatalf("small pan clamped: %+v", v)
	}
}

func TestClampScale(t *testing.T) {
	for _, in := range []float64{-10, 0, 0.01, 0.5, 1.2, 99} {
		got := ClampScale(in)
		if got < MinScale || got > MaxScale {
			t.Fatalf("ClampScale(%v) = %v", in, got)
		}
	}
}

type fixedWidth float64

func (f fixedWidth) Measure(string, float64, string) float64 { return float64(f) }

func TestHitTestRotatedAndTopmost(t *testing.T) {
	s := &Scene{}
	bottom := &Image{ID: "img_bottom", W: 100, H: 20, Transform: Transform{X: 0, Y: 0, S: 1}}
	top := &Image{ID: "img_top", W: 100, H: 20, Transform: Transform{X: 0, Y: 0, S: 1, R: math.Pi / 2}}
	s.Append(bottom)
	s.Append(top)
	s.Append(linePath("path_over", 5))

	if got := s.HitTest(vector.Pt{X: 0, Y: 40}, nil); got != "img_top" {
		t.Fatalf("rotated hit: %q", got)
	}
	if got := s.HitTest(vector.Pt{X: 40, Y: 0}, nil); got != "img_bottom" {
		t.Fatalf("bottom hit: %q", got)
	}
	if got := s.HitTest(vector.Pt{X: 200, Y: 200}, nil); got != "" {
		t.Fatalf("miss returned %q", got)
	}
}

func TestTextBoundsUseMeasurer(t *testing.T) {
	txt := &Text{ID: "txt_a", Text: "Hello", Size: 36, Transform: Transform{S: 0.5}}
	b, ok := BoundsOf(txt, fixedWidth(80))
	if !ok || b.W != 40 || b.H != 18 {
		t.Fatalf("bounds: %+v", b)
	}
	if !Contains(txt, vector.Pt{X: 19, Y: 8}, fixedWidth(80)) {
		t.Fatalf("expected inside")
	}
	if Contains(txt, vector.Pt{X: 21, Y: 0}, fixedWidth(80)) {
		t.Fatalf("expected outside")
	}
}

func TestHandles(t *testing.T) {
	img := &Image{ID: "img_a", W: 200, H: 100, Transform: Transform{X: 50, Y: 50, S: 1}}
	del, ok := DeleteHandle(img, nil, 1)
	if !ok {
		t.Fatalf("image must have delete handle")
	}
	// offset max(10, 100*0.08)=10, radius max(12, 9)=12
	if del.Radius != 12 || del.Center != (vector.Pt{X: 160, Y: -10}) {
		t.Fatalf("delete handle: %+v", del)
	}
	sc, _ := ScaleHandle(img, nil, 1)
	if sc.Radius != 16 || sc.Center != (vector.Pt{X: 164, Y: 114}) {
		t.Fatalf("scale handle: %+v", sc)
	}
	if !sc.Hit(vector.Pt{X: 170, Y: 120}) || sc.Hit(vector.Pt{X: 50, Y: 50}) {
		t.Fatalf("scale handle hit wrong")
	}
	ring, _ := RotationRing(img, nil, 2)
	if ring.Radius != 132 || ring.Thickness != 20 {
		t.Fatalf("ring: %+v", ring)
	}
	if !ring.Hit(vector.Pt{X: 50 + 140, Y: 50}) || ring.Hit(vector.Pt{X: 50, Y: 50}) {
		t.Fatalf("ring hit wrong")
	}

	txt := &Text{ID: "txt_a", Text: "x", Size: 36, Transform: Transform{S: 1}}
	if _, ok := DeleteHandle(txt, fixedWidth(10), 1); ok {
		t.Fatalf("text must not have a delete handle")
	}
	if _, ok := ScaleHandle(linePath("p", 2), nil, 1); ok {
		t.Fatalf("paths have no handles")
	}
}

func TestSceneRemoveAndClone(t *testing.T) {
	s := &Scene{}
	s.Append(&Image{ID: "img_a", Name: "cat", Transform: Transform{S: 1}})
	s.Append(&Text{ID: "txt_b", Text: "hi", Transform: Transform{S: 1}})
	s.Append(linePath("path_c", 3))
	s.Select("img_a")

	c := s.Clone()
	c.Objects[2].(*Path).Points[0].X = 999
	if s.Objects[2].(*Path).Points[0].X == 999 {
		t.Fatalf("clone shares points")
	}

	if names := s.UsedAssetNames(); len(names) != 1 || names[0] != "cat" {
		t.Fatalf("names: %v", names)
	}
	s.Select("path_c")
	if s.SelectedID != "" {
		t.Fatalf("paths must not be selectable")
	}
	s.Select("img_a")
	if !s.Remove("img_a") || s.SelectedID != "" {
		t.Fatalf("remove must clear selection")
	}
	if s.Remove("missing") {
		t.Fatalf("remove of unknown id reported true")
	}
	if !s.RemovePaths() || len(s.Objects) != 1 || len(s.Paths()) != 0 {
		t.Fatalf("RemovePaths: %d objects left", len(s.Objects))
	}
}
