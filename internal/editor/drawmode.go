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

// Mode switches pointer input between object editing and freehand drawing.
type Mode int

const (
	ModeSelect Mode = iota
	ModeDraw
)

// Tool is the draw-mode tool.
type Tool int

const (
	ToolPen Tool = iota
	ToolEraser
)

const (
	defaultPenColor   = "#3a2f26"
	defaultPenSize    = 6
	defaultEraserSize = 24
)

// PenOptions styles new freehand paths.
type PenOptions struct {
	Color  string
	Size   float64
	Effect scene.Effect
}

// DefaultPenOptions returns the initial pen.
func DefaultPenOptions() PenOptions {
	return PenOptions{Color: defaultPenColor, Size: defaultPenSize, Effect: scene.DefaultEffect()}
}

// EraserOptions sizes the eraser. The erase radius is half the size.
type EraserOptions struct {
	Size float64
}

// DefaultEraserOptions returns the initial eraser.
func DefaultEraserOptions() EraserOptions { return EraserOptions{Size: defaultEraserSize} }

// SetDrawMode switches modes. Switching clears the selection and abandons
// any gesture and pointer tracking.
func (s *Session) SetDrawMode(m Mode) {
	if m != ModeDraw {
		m = ModeSelect
	}
	s.mu.Lock()
	defer s.unlock()
	if s.mode == m {
		return
	}
	s.mode = m
	s.clearSelection()
	s.gesture = nil
	clear(s.pointers)
	s.redraw()
}

// DrawMode returns the current mode.
func (s *Session) DrawMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetDrawTool selects the pen or the eraser.
func (s *Session) SetDrawTool(t Tool) {
	if t != ToolEraser {
		t = ToolPen
	}
	s.mu.Lock()
	s.tool = t
	s.mu.Unlock()
}

// SetPenOptions updates the pen. An empty colour or non-positive size keeps
// the current value; the effect is always replaced.
func (s *Session) SetPenOptions(o PenOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Color != "" {
		s.pen.Color = o.Color
	}
	if o.Size > 0 {
		s.pen.Size = o.Size
	}
	s.pen.Effect = o.Effect.Normalized()
}

// PenOptions returns the current pen.
func (s *Session) PenOptions() PenOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pen
}

// SetEraserOptions updates the eraser; a non-positive size keeps the current.
func (s *Session) SetEraserOptions(o EraserOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Size > 0 {
		s.eraser.Size = o.Size
	}
}

// ClearDraw removes every freehand path.
func (s *Session) ClearDraw() {
	s.mu.Lock()
	defer s.unlock()
	s.scene.RemovePaths()
	if s.scene.SelectedID == "" {
		s.objectEdit = false
	}
	s.commit()
}

func (s *Session) eraseRadius() float64 { return math.Max(1, s.eraser.Size*0.5) }

// eraseAt removes the parts of paths within the eraser radius of p.
func (s *Session) eraseAt(p vector.Pt) bool {
	objs, changed := scene.EraseAt(s.scene.Objects, p, s.eraseRadius(), typeid.NewPathID)
	if changed {
		s.scene.Objects = objs
	}
	return changed
}
