/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import "sync"

// DefaultMaxDepth is the number of undo steps kept when Config leaves it unset.
const DefaultMaxDepth = 80

// Config controls the depth cap.
type Config struct {
	// MaxDepth is the number of retrievable undo steps. The oldest snapshot
	// beyond it is evicted on push.
	MaxDepth int
}

// State is what history listeners observe.
type State struct {
	CanUndo bool
	CanRedo bool
}

// History is a linear undo/redo stack of full snapshots. The top of the undo
// stack is always the current state; callers pass values they will not mutate
// afterwards. It is safe for concurrent use.
type History[T any] struct {
	cfg      Config
	mu       sync.Mutex
	undo     []T
	redo     []T
	listener func(State)
}

func New[T any](cfg Config) *History[T] {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &History[T]{cfg: cfg}
}

// SetListener installs fn and invokes it once with the current state.
// A nil fn removes the listener.
func (h *History[T]) SetListener(fn func(State)) {
	h.mu.Lock()
	h.listener = fn
	st := h.stateLocked()
	h.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// Reset drops both stacks and seeds the undo stack with initial.
func (h *History[T]) Reset(initial T) {
	h.mu.Lock()
	h.undo = []T{initial}
	h.redo = nil
	h.notifyUnlock()
}

// Push records a new current state and invalidates redo.
func (h *History[T]) Push(s T) {
	h.mu.Lock()
	h.undo = append(h.undo, s)
	h.redo = nil
	if over := len(h.undo) - (h.cfg.MaxDepth + 1); over > 0 {
		// copy so the evicted prefix can be collected
		h.undo = append([]T(nil), h.undo[over:]...)
	}
	h.notifyUnlock()
}

// Undo moves the current state to the redo stack and returns the new current
// state. It returns false when only the baseline remains.
func (h *History[T]) Undo() (T, bool) {
	h.mu.Lock()
	if len(h.undo) < 2 {
		h.mu.Unlock()
		var zero T
		return zero, false
	}
	cur := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, cur)
	top := h.undo[len(h.undo)-1]
	h.notifyUnlock()
	return top, true
}

// Redo re-applies the most recently undone state and returns it.
func (h *History[T]) Redo() (T, bool) {
	h.mu.Lock()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		var zero T
		return zero, false
	}
	s := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, s)
	h.notifyUnlock()
	return s, true
}

// Current returns the top of the undo stack.
func (h *History[T]) Current() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		var zero T
		return zero, false
	}
	return h.undo[len(h.undo)-1], true
}

func (h *History[T]) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 1
}

func (h *History[T]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Len returns the number of undo steps and redo steps held.
func (h *History[T]) Len() (undoSteps, redoSteps int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	undoSteps = len(h.undo) - 1
	if undoSteps < 0 {
		undoSteps = 0
	}
	return undoSteps, len(h.redo)
}

func (h *History[T]) stateLocked() State {
	return State{CanUndo: len(h.undo) > 1, CanRedo: len(h.redo) > 0}
}

// notifyUnlock releases the lock and then calls the listener, so listeners
// may call back into the history.
func (h *History[T]) notifyUnlock() {
	fn := h.listener
	st := h.stateLocked()
	h.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
