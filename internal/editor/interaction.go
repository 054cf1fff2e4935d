/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"math"

	"stickercanvas/internal/scene"
	"stickercanvas/internal/typeid"
	"stickercanvas/internal/vector"
)

// PointerKind is the input device behind a pointer event.
type PointerKind int

const (
	PointerMouse PointerKind = iota
	PointerTouch
	PointerPen
)

// PointerEvent is one pointer sample in surface device pixels.
type PointerEvent struct {
	ID   int
	X, Y float64
	Kind PointerKind
}

func (e PointerEvent) pt() vector.Pt { return vector.Pt{X: e.X, Y: e.Y} }

type pointer struct {
	screen vector.Pt
	kind   PointerKind
}

type gestureKind int

const (
	gestureMove gestureKind = iota + 1
	gestureRotate
	gestureScale
	gesturePinchObject
	gesturePinchView
	gestureDraw
	gestureErase
	gesturePan
)

// gesture is the single active drag. Fields are used per kind.
type gesture struct {
	kind      gestureKind
	pointerID int
	targetID  string

	// move: grab offset from the object centre
	dx, dy float64
	// rotate
	startAngle, baseR float64
	// scale, object pinch and view pinch
	startDist, baseScale float64
	// draw, erase: last sample in scene space. pan: last screen position.
	last vector.Pt

	changed bool
}

// PointerDown starts a gesture. Resolution order: two-pointer pinch, draw
// mode tools, handles of the selected object, object body, then viewport pan.
func (s *Session) PointerDown(ev PointerEvent) {
	s.mu.Lock()
	defer s.unlock()
	s.pointers[ev.ID] = pointer{screen: ev.pt(), kind: ev.Kind}

	if len(s.pointers) == 2 && s.startPinch() {
		s.redraw()
		return
	}
	if s.gesture != nil {
		return
	}
	p := s.view.ToScene(ev.pt())

	if s.mode == ModeDraw {
		s.startDrawTool(ev.ID, p)
		return
	}

	if sel := s.scene.Selected(); sel != nil && s.canEditObjects() {
		if h, ok := scene.DeleteHandle(sel, s.renderer, s.dpr); ok && h.Hit(p) {
			s.removeLocked(sel.ObjectID())
			return
		}
		if h, ok := scene.ScaleHandle(sel, s.renderer, s.dpr); ok && h.Hit(p) {
			if !s.designRect().Contains(ev.pt()) {
				return
			}
			t, _ := scene.PlacementOf(sel)
			s.gesture = &gesture{
				kind:      gestureScale,
				pointerID: ev.ID,
				targetID:  sel.ObjectID(),
				startDist: math.Max(1, vector.Dist(p, t.Center())),
				baseScale: t.S,
			}
			return
		}
		if ring, ok := scene.RotationRing(sel, s.renderer, s.dpr); ok && ring.Hit(p) {
			t, _ := scene.PlacementOf(sel)
			s.gesture = &gesture{
				kind:       gestureRotate,
				pointerID:  ev.ID,
				targetID:   sel.ObjectID(),
				startAngle: math.Atan2(p.Y-t.Y, p.X-t.X),
				baseR:      t.R,
			}
			return
		}
	}

	if id := s.scene.HitTest(p, s.renderer); id != "" {
		s.selectObject(id)
		t, _ := scene.PlacementOf(s.scene.Find(id))
		s.gesture = &gesture{
			kind:      gestureMove,
			pointerID: ev.ID,
			targetID:  id,
			dx:        p.X - t.X,
			dy:        p.Y - t.Y,
		}
		s.redraw()
		return
	}

	s.clearSelection()
	s.gesture = &gesture{kind: gesturePan, pointerID: ev.ID, last: ev.pt()}
	s.redraw()
}

func (s *Session) designRect() vector.Rect {
	return scene.DesignRect(s.width(), s.height())
}

// startPinch begins a pinch when both active pointers are inside the design
// rect. The selected object is pinched in select mode with object editing
// on; otherwise the view is, except in draw mode.
func (s *Session) startPinch() bool {
	a, b, ok := s.twoPointers()
	if !ok {
		return false
	}
	rect := s.designRect()
	if !rect.Contains(a) || !rect.Contains(b) {
		return false
	}
	var g *gesture
	if sel := s.scene.Selected(); sel != nil && s.canEditObjects() {
		t, _ := scene.PlacementOf(sel)
		g = &gesture{
			kind:      gesturePinchObject,
			targetID:  sel.ObjectID(),
			startDist: math.Max(1, vector.Dist(s.view.ToScene(a), s.view.ToScene(b))),
			baseScale: t.S,
		}
	} else if s.mode != ModeDraw {
		g = &gesture{
			kind:      gesturePinchView,
			startDist: math.Max(1, vector.Dist(a, b)),
			baseScale: s.view.Scale,
		}
	} else {
		return false
	}
	s.finishGesture()
	s.gesture = g
	return true
}

// twoPointers returns the screen positions of the two active pointers in
// id order.
func (s *Session) twoPointers() (vector.Pt, vector.Pt, bool) {
	if len(s.pointers) != 2 {
		return vector.Pt{}, vector.Pt{}, false
	}
	var ids []int
	for id := range s.pointers {
		ids = append(ids, id)
	}
	if ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	return s.pointers[ids[0]].screen, s.pointers[ids[1]].screen, true
}

func (s *Session) startDrawTool(id int, p vector.Pt) {
	if len(s.pointers) > 1 {
		return
	}
	if s.tool == ToolEraser {
		g := &gesture{kind: gestureErase, pointerID: id, last: p}
		s.gesture = g
		if s.eraseAt(p) {
			g.changed = true
			s.redraw()
		}
		return
	}
	path := &scene.Path{
		ID:      typeid.NewPathID(),
		Points:  []vector.Pt{p},
		Color:   s.pen.Color,
		Size:    s.pen.Size,
		Opacity: 1,
		Effect:  s.pen.Effect,
	}
	s.scene.Append(path)
	s.gesture = &gesture{kind: gestureDraw, pointerID: id, targetID: path.ID, last: p, changed: true}
	s.redraw()
}

// PointerMove advances the active gesture. Moves of pointers that are not
// down are ignored.
func (s *Session) PointerMove(ev PointerEvent) {
	s.mu.Lock()
	defer s.unlock()
	if _, down := s.pointers[ev.ID]; !down {
		return
	}
	s.pointers[ev.ID] = pointer{screen: ev.pt(), kind: ev.Kind}
	g := s.gesture
	if g == nil {
		return
	}
	p := s.view.ToScene(ev.pt())

	switch g.kind {
	case gesturePinchView:
		a, b, ok := s.twoPointers()
		if !ok {
			return
		}
		next := g.baseScale * vector.Dist(a, b) / g.startDist
		mid := vector.Mid(a, b)
		s.view.ZoomAt(next, mid.X, mid.Y)
		s.view.Clamp(scene.PaddedFrame(s.width(), s.height()))
		s.redraw()
	case gesturePinchObject:
		a, b, ok := s.twoPointers()
		if !ok {
			return
		}
		d := vector.Dist(s.view.ToScene(a), s.view.ToScene(b))
		s.setTargetScale(g, g.baseScale*d/g.startDist)
	default:
		if ev.ID != g.pointerID {
			return
		}
		s.moveSingle(g, ev.pt(), p)
	}
}

func (s *Session) moveSingle(g *gesture, screen, p vector.Pt) {
	switch g.kind {
	case gestureScale:
		t, ok := scene.PlacementOf(s.scene.Find(g.targetID))
		if !ok {
			return
		}
		s.setTargetScale(g, g.baseScale*vector.Dist(p, t.Center())/g.startDist)
	case gestureRotate:
		t, ok := scene.PlacementOf(s.scene.Find(g.targetID))
		if !ok {
			return
		}
		if r := g.baseR + (math.Atan2(p.Y-t.Y, p.X-t.X) - g.startAngle); r != t.R {
			t.R = r
			g.changed = true
			s.redraw()
		}
	case gestureMove:
		t, ok := scene.PlacementOf(s.scene.Find(g.targetID))
		if !ok {
			return
		}
		x, y := p.X-g.dx, p.Y-g.dy
		if x != t.X || y != t.Y {
			t.X, t.Y = x, y
			g.changed = true
			s.redraw()
		}
	case gestureDraw:
		path, ok := s.scene.Find(g.targetID).(*scene.Path)
		if !ok {
			return
		}
		samples := vector.SampleAlong(g.last, p, s.sampleSpacing())
		if len(samples) == 0 {
			return
		}
		path.Points = append(path.Points, samples...)
		g.last = samples[len(samples)-1]
		s.redraw()
	case gestureErase:
		changed := false
		for _, q := range vector.SampleAlong(g.last, p, s.sampleSpacing()) {
			if s.eraseAt(q) {
				changed = true
			}
		}
		if s.eraseAt(p) {
			changed = true
		}
		g.last = p
		if changed {
			g.changed = true
			s.redraw()
		}
	case gesturePan:
		dx, dy := screen.X-g.last.X, screen.Y-g.last.Y
		g.last = screen
		if dx == 0 && dy == 0 {
			return
		}
		s.view.Pan(dx, dy, scene.PaddedFrame(s.width(), s.height()))
		s.redraw()
	}
}

func (s *Session) setTargetScale(g *gesture, v float64) {
	t, ok := scene.PlacementOf(s.scene.Find(g.targetID))
	if !ok {
		return
	}
	v = scene.ClampScale(v)
	if v == t.S {
		return
	}
	t.S = v
	g.changed = true
	s.redraw()
}

func (s *Session) sampleSpacing() float64 { return pointerSampleFactor * s.dpr }

// PointerUp ends the gesture owned by the pointer. A pinch ends when fewer
// than two pointers remain.
func (s *Session) PointerUp(ev PointerEvent) {
	s.mu.Lock()
	defer s.unlock()
	if _, down := s.pointers[ev.ID]; !down {
		return
	}
	delete(s.pointers, ev.ID)
	g := s.gesture
	if g == nil {
		return
	}
	switch g.kind {
	case gesturePinchView, gesturePinchObject:
		if len(s.pointers) < 2 {
			s.finishGesture()
		}
	default:
		if ev.ID == g.pointerID {
			s.finishGesture()
		}
	}
}

// PointerCancel drops every pointer and ends the active gesture.
func (s *Session) PointerCancel() {
	s.mu.Lock()
	defer s.unlock()
	clear(s.pointers)
	s.finishGesture()
}

// finishGesture ends the active gesture. Object gestures that changed the
// scene record one history snapshot; a view pinch snaps back to identity when
// it ends close to scale 1.
func (s *Session) finishGesture() {
	g := s.gesture
	s.gesture = nil
	if g == nil {
		return
	}
	switch g.kind {
	case gesturePinchView:
		if s.view.SnapIfClose() {
			s.redraw()
		}
	case gesturePan:
	default:
		if g.changed {
			s.history.Push(s.scene.Clone())
		}
	}
}
