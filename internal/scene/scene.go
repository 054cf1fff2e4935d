/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Scene is the ordered object list plus selection. Z-order is slice order;
// later entries draw on top.
type Scene struct {
	Objects    []Object
	SelectedID string
}

// IndexOf returns the slice index of id, or -1.
func (s *Scene) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, o := range s.Objects {
		if o.ObjectID() == id {
			return i
		}
	}
	return -1
}

// Find returns the object with id, or nil.
func (s *Scene) Find(id string) Object {
	if i := s.IndexOf(id); i >= 0 {
		return s.Objects[i]
	}
	return nil
}

// Append adds o on top of the stack.
func (s *Scene) Append(o Object) { s.Objects = append(s.Objects, o) }

// Remove deletes the object with id and clears the selection if it pointed at
// it. It reports whether anything was removed.
func (s *Scene) Remove(id string) bool {
	i := s.IndexOf(id)
	if i < 0 {
		return false
	}
	s.Objects = append(s.Objects[:i:i], s.Objects[i+1:]...)
	if s.SelectedID == id {
		s.SelectedID = ""
	}
	return true
}

// Selected returns the selected object, or nil.
func (s *Scene) Selected() Object { return s.Find(s.SelectedID) }

// Select marks id as selected. Paths and unknown ids clear the selection.
func (s *Scene) Select(id string) {
	if o := s.Find(id); o != nil && Editable(o) {
		s.SelectedID = id
		return
	}
	s.SelectedID = ""
}

// ClearSelection drops the selection.
func (s *Scene) ClearSelection() { s.SelectedID = "" }

// Clone deep-copies the scene. Bitmaps are shared.
func (s *Scene) Clone() Scene {
	out := Scene{SelectedID: s.SelectedID, Objects: make([]Object, len(s.Objects))}
	for i, o := range s.Objects {
		out.Objects[i] = Clone(o)
	}
	return out
}

// UsedAssetNames lists the names of placed images in z-order.
func (s *Scene) UsedAssetNames() []string {
	names := make([]string, 0, len(s.Objects))
	for _, o := range s.Objects {
		if img, ok := o.(*Image); ok {
			names = append(names, img.Name)
		}
	}
	return names
}

// RemovePaths drops every freehand path. It reports whether any were removed.
func (s *Scene) RemovePaths() bool {
	kept := s.Objects[:0:0]
	for _, o := range s.Objects {
		if _, ok := o.(*Path); ok {
			continue
		}
		kept = append(kept, o)
	}
	changed := len(kept) != len(s.Objects)
	s.Objects = kept
	if s.SelectedID != "" && s.Find(s.SelectedID) == nil {
		s.SelectedID = ""
	}
	return changed
}

// Paths returns the freehand paths in z-order.
func (s *Scene) Paths() []*Path {
	var out []*Path
	for _, o := range s.Objects {
		if p, ok := o.(*Path); ok {
			out = append(out, p)
		}
	}
	return out
}
