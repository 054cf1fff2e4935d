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
)

// Wheel scales the selected object by one step per tick, growing on a
// negative deltaY. Each tick that changes the scale is one history entry.
func (s *Session) Wheel(deltaY float64) bool {
	s.mu.Lock()
	defer s.unlock()
	if !s.canEditObjects() || deltaY == 0 {
		return false
	}
	t, ok := scene.PlacementOf(s.scene.Selected())
	if !ok {
		return false
	}
	next := scene.ClampScale(t.S - math.Copysign(wheelStep, deltaY))
	if next == t.S {
		return false
	}
	t.S = next
	s.commit()
	return true
}

// KeyDown handles editing keys for the selected object: Delete and
// Backspace remove it, q and e rotate it. It reports whether the key was
// consumed.
func (s *Session) KeyDown(key string) bool {
	s.mu.Lock()
	defer s.unlock()
	if !s.canEditObjects() {
		return false
	}
	sel := s.scene.Selected()
	if sel == nil {
		return false
	}
	switch key {
	case "Delete", "Backspace":
		return s.removeLocked(sel.ObjectID())
	case "q", "Q":
		return s.rotateSelected(sel, -keyRotateStep)
	case "e", "E":
		return s.rotateSelected(sel, keyRotateStep)
	}
	return false
}

func (s *Session) rotateSelected(o scene.Object, delta float64) bool {
	t, ok := scene.PlacementOf(o)
	if !ok {
		return false
	}
	t.R += delta
	s.commit()
	return true
}
