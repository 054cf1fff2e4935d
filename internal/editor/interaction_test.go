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
	"math"
	"testing"

	"stickercanvas/internal/scene"
	"stickercanvas/internal/vector"
)

func down(s *Session, id int, x, y float64) {
	s.PointerDown(PointerEvent{ID: id, X: x, Y: y, Kind: PointerTouch})
}

func move(s *Session, id int, x, y float64) {
	s.PointerMove(PointerEvent{ID: id, X: x, Y: y, Kind: PointerTouch})
}

func up(s *Session, id int, x, y float64) {
	s.PointerUp(PointerEvent{ID: id, X: x, Y: y, Kind: PointerTouch})
}

// withImage places a.png (100x100 at scale 0.35) at the centre, selected.
func withImage(t *testing.T) (*Session, string) {
	t.Helper()
	s := newTestSession(t, testLoader())
	id, err := s.AddAsset(context.Background(), "a.png", "a")
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	return s, id
}

func placement(t *testing.T, s *Session, id string) scene.Transform {
	t.Helper()
	for _, o := range s.Objects() {
		if o.ObjectID() == id {
			tr, ok := scene.PlacementOf(o)
			if !ok {
				t.Fatalf("%s has no placement", id)
			}
			return *tr
		}
	}
	t.Fatalf("%s not found", id)
	return scene.Transform{}
}

func TestMoveDragPushesOnce(t *testing.T) {
	s, id := withImage(t)
	steps := undoSteps(s)
	down(s, 1, 450, 450)
	move(s, 1, 470, 455)
	move(s, 1, 500, 460)
	up(s, 1, 500, 460)
	if tr := placement(t, s, id); tr.X != 500 || tr.Y != 460 {
		t.Fatalf("moved to %v,%v", tr.X, tr.Y)
	}
	if undoSteps(s) != steps+1 {
		t.Fatalf("drag should push exactly once")
	}
	s.Undo()
	if tr := placement(t, s, id); tr.X != 450 || tr.Y != 450 {
		t.Fatalf("undo should restore the pre-drag position")
	}
}

func TestTapWithoutMoveDoesNotPush(t *testing.T) {
	s, _ := withImage(t)
	steps := undoSteps(s)
	down(s, 1, 452, 448)
	up(s, 1, 452, 448)
	if undoSteps(s) != steps {
		t.Fatalf("a tap must not create a history entry")
	}
}

func TestMissClearsSelectionAndPans(t *testing.T) {
	s, id := withImage(t)
	steps := undoSteps(s)
	down(s, 1, 150, 150)
	if s.SelectedID() != "" {
		t.Fatalf("miss should clear selection")
	}
	move(s, 1, 180, 170)
	up(s, 1, 180, 170)
	v := s.View()
	if v.OffsetX != 30 || v.OffsetY != 20 || v.Scale != 1 {
		t.Fatalf("pan gave %+v", v)
	}
	if undoSteps(s) != steps {
		t.Fatalf("pan must not push history")
	}
	// the object is now hit at its shifted screen position
	down(s, 2, 480, 470)
	up(s, 2, 480, 470)
	if s.SelectedID() != id {
		t.Fatalf("hit test should go through the viewport")
	}
}

func TestPanIsClamped(t *testing.T) {
	s := newTestSession(t, testLoader())
	down(s, 1, 100, 100)
	move(s, 1, 5000, 5000)
	up(s, 1, 5000, 5000)
	v := s.View()
	frame := scene.PaddedFrame(900, 900)
	// some part of the frame must remain on screen
	if v.OffsetX+frame.X >= frame.X+frame.W || v.OffsetY+frame.Y >= frame.Y+frame.H {
		t.Fatalf("pan left the frame off-screen: %+v", v)
	}
}

func TestDeleteHandleRemovesImage(t *testing.T) {
	s, id := withImage(t)
	o := s.Objects()[0]
	h, ok := scene.DeleteHandle(o, s.renderer, 1)
	if !ok {
		t.Fatalf("images carry a delete handle")
	}
	down(s, 1, h.Center.X, h.Center.Y)
	up(s, 1, h.Center.X, h.Center.Y)
	for _, o := range s.Objects() {
		if o.ObjectID() == id {
			t.Fatalf("delete handle did not remove the image")
		}
	}
	if s.SelectedID() != "" {
		t.Fatalf("selection should clear on delete")
	}
}

func TestScaleHandleDrag(t *testing.T) {
	s, id := withImage(t)
	h, _ := scene.ScaleHandle(s.Objects()[0], s.renderer, 1)
	steps := undoSteps(s)
	down(s, 1, h.Center.X, h.Center.Y)
	// twice as far from the centre doubles the scale
	tx := 450 + 2*(h.Center.X-450)
	ty := 450 + 2*(h.Center.Y-450)
	move(s, 1, tx, ty)
	up(s, 1, tx, ty)
	if got := placement(t, s, id).S; math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("scale = %v, want 0.7", got)
	}
	if undoSteps(s) != steps+1 {
		t.Fatalf("scale drag should push once")
	}
}

func TestScaleHandleClamps(t *testing.T) {
	s, id := withImage(t)
	h, _ := scene.ScaleHandle(s.Objects()[0], s.renderer, 1)
	down(s, 1, h.Center.X, h.Center.Y)
	move(s, 1, 450+0.001*(h.Center.X-450), 450+0.001*(h.Center.Y-450))
	if got := placement(t, s, id).S; got != scene.MinScale {
		t.Fatalf("scale = %v, want clamp to %v", got, scene.MinScale)
	}
	up(s, 1, 450, 450)
}

func TestRotationRingDrag(t *testing.T) {
	s, id := withImage(t)
	ring, _ := scene.RotationRing(s.Objects()[0], s.renderer, 1)
	// start on the ring to the right and sweep a quarter turn clockwise
	down(s, 1, 450+ring.Radius, 450)
	move(s, 1, 450, 450+ring.Radius)
	up(s, 1, 450, 450+ring.Radius)
	if got := placement(t, s, id).R; math.Abs(got-math.Pi/2) > 1e-9 {
		t.Fatalf("rotation = %v, want pi/2", got)
	}
}

func TestRotationRingTapKeepsHistory(t *testing.T) {
	s, id := withImage(t)
	ring, _ := scene.RotationRing(s.Objects()[0], s.renderer, 1)
	before := undoSteps(s)
	down(s, 1, 450+ring.Radius, 450)
	move(s, 1, 450+ring.Radius, 450)
	up(s, 1, 450+ring.Radius, 450)
	if got := undoSteps(s); got != before {
		t.Fatalf("undo steps = %d after a tap on the ring, want %d", got, before)
	}
	if got := placement(t, s, id).R; got != 0 {
		t.Fatalf("rotation = %v, want 0", got)
	}
}

func TestViewPinchZoomsAndSnaps(t *testing.T) {
	s := newTestSession(t, testLoader())
	down(s, 1, 400, 450)
	down(s, 2, 500, 450)
	move(s, 2, 600, 450)
	if v := s.View(); v.Scale != 2 {
		t.Fatalf("pinch to twice the distance should zoom to 2, got %v", v.Scale)
	}
	move(s, 2, 510, 450)
	up(s, 2, 510, 450)
	up(s, 1, 400, 450)
	if v := s.View(); math.Abs(v.Scale-1.1) > 1e-9 {
		t.Fatalf("scale = %v, want 1.1", v.Scale)
	}

	down(s, 1, 400, 450)
	down(s, 2, 500, 450)
	move(s, 2, 493, 450)
	up(s, 2, 493, 450)
	up(s, 1, 400, 450)
	if v := s.View(); !v.IsIdentity() {
		t.Fatalf("a pinch ending near 1 should snap to identity, got %+v", v)
	}
	if s.CanUndo() {
		t.Fatalf("view pinches must not push history")
	}
}

func TestObjectPinchScalesSelection(t *testing.T) {
	s, id := withImage(t)
	steps := undoSteps(s)
	down(s, 1, 450, 450)
	down(s, 2, 500, 450)
	move(s, 2, 550, 450)
	up(s, 2, 550, 450)
	up(s, 1, 450, 450)
	if got := placement(t, s, id).S; math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("object pinch scale = %v, want 0.7", got)
	}
	if !s.View().IsIdentity() {
		t.Fatalf("object pinch must not touch the view")
	}
	if undoSteps(s) != steps+1 {
		t.Fatalf("object pinch should push once")
	}
}

func TestPinchOutsideDesignRectIgnored(t *testing.T) {
	s := newTestSession(t, testLoader())
	down(s, 1, 10, 10)
	down(s, 2, 60, 10)
	move(s, 2, 160, 10)
	if s.gesture != nil && s.gesture.kind == gesturePinchView {
		t.Fatalf("pinch outside the design rect should not start")
	}
}

func TestWheelAndKeys(t *testing.T) {
	s, id := withImage(t)
	steps := undoSteps(s)
	if !s.Wheel(-120) {
		t.Fatalf("wheel not applied")
	}
	if got := placement(t, s, id).S; math.Abs(got-0.39) > 1e-9 {
		t.Fatalf("wheel up scale = %v", got)
	}
	s.Wheel(120)
	if got := placement(t, s, id).S; math.Abs(got-0.35) > 1e-9 {
		t.Fatalf("wheel down scale = %v", got)
	}
	s.KeyDown("e")
	s.KeyDown("q")
	s.KeyDown("q")
	if got := placement(t, s, id).R; math.Abs(got+0.08) > 1e-9 {
		t.Fatalf("rotation = %v", got)
	}
	if undoSteps(s) != steps+5 {
		t.Fatalf("each wheel tick and key should push, got %d steps", undoSteps(s)-steps)
	}
	if !s.KeyDown("Delete") || len(s.Objects()) != 0 {
		t.Fatalf("Delete should remove the selection")
	}
	if s.KeyDown("Delete") {
		t.Fatalf("keys without a selection are not consumed")
	}
}

func TestWheelIgnoredWithoutObjectEdit(t *testing.T) {
	s, _ := withImage(t)
	down(s, 1, 150, 150)
	up(s, 1, 150, 150)
	if s.Wheel(-1) {
		t.Fatalf("wheel must be ignored after selection is cleared")
	}
}

func TestPenDrawsOnePath(t *testing.T) {
	s := newTestSession(t, testLoader())
	s.SetDrawMode(ModeDraw)
	s.SetPenOptions(PenOptions{Color: "#ff00ff", Size: 10})
	down(s, 1, 100, 100)
	move(s, 1, 120, 100)
	up(s, 1, 120, 100)
	objs := s.Objects()
	if len(objs) != 1 {
		t.Fatalf("want one path, got %d", len(objs))
	}
	p := objs[0].(*scene.Path)
	if len(p.Points) != 11 || p.Points[0] != (vector.Pt{X: 100, Y: 100}) || p.Points[10] != (vector.Pt{X: 120, Y: 100}) {
		t.Fatalf("points %v", p.Points)
	}
	if p.Color != "#ff00ff" || p.Size != 10 {
		t.Fatalf("pen style not applied: %+v", p)
	}
	if undoSteps(s) != 1 {
		t.Fatalf("a stroke pushes once, got %d", undoSteps(s))
	}
}

func TestEraserSplitsPath(t *testing.T) {
	s := newTestSession(t, testLoader())
	s.SetDrawMode(ModeDraw)
	down(s, 1, 100, 100)
	move(s, 1, 300, 100)
	up(s, 1, 300, 100)

	s.SetDrawTool(ToolEraser)
	down(s, 1, 200, 100)
	up(s, 1, 200, 100)
	objs := s.Objects()
	if len(objs) != 2 {
		t.Fatalf("erasing the middle should leave two paths, got %d", len(objs))
	}
	for _, o := range objs {
		for _, pt := range o.(*scene.Path).Points {
			if math.Abs(pt.X-200) <= 12 {
				t.Fatalf("point %v survived inside the eraser radius", pt)
			}
		}
	}
	if undoSteps(s) != 2 {
		t.Fatalf("want stroke + erase = 2 steps, got %d", undoSteps(s))
	}

	// erasing empty space records nothing
	down(s, 1, 600, 600)
	up(s, 1, 600, 600)
	if undoSteps(s) != 2 {
		t.Fatalf("a miss must not push")
	}
}

func TestSetDrawModeClearsSelection(t *testing.T) {
	s, _ := withImage(t)
	s.SetDrawMode(ModeDraw)
	if s.SelectedID() != "" {
		t.Fatalf("switching to draw should clear selection")
	}
	// in draw mode images are not hit
	down(s, 1, 450, 450)
	up(s, 1, 450, 450)
	if s.SelectedID() != "" {
		t.Fatalf("draw mode must not select")
	}
	s.ClearDraw()
	for _, o := range s.Objects() {
		if _, ok := o.(*scene.Path); ok {
			t.Fatalf("ClearDraw left a path")
		}
	}
	if len(s.Objects()) != 1 {
		t.Fatalf("ClearDraw must keep images")
	}
}

func TestPointerCancelCommitsChange(t *testing.T) {
	s, id := withImage(t)
	steps := undoSteps(s)
	down(s, 1, 450, 450)
	move(s, 1, 400, 400)
	s.PointerCancel()
	if undoSteps(s) != steps+1 {
		t.Fatalf("cancel after a change should push once")
	}
	if tr := placement(t, s, id); tr.X != 400 {
		t.Fatalf("cancel must keep the moved position")
	}
	move(s, 1, 300, 300)
	if tr := placement(t, s, id); tr.X != 400 {
		t.Fatalf("moves after cancel must be ignored")
	}
}
