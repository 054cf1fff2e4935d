/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "stickercanvas/internal/vector"

// EraseAt removes every path point within radius of p, and every point whose
// incoming segment passes within radius. Each removal ends the current run;
// runs of two or more points survive as new paths with ids from newID. Image
// and text objects pass through untouched. The returned slice is a new list
// when changed is true; otherwise it is objs itself.
func EraseAt(objs []Object, p vector.Pt, radius float64, newID func() string) ([]Object, bool) {
	r2 := radius * radius
	changed := false
	next := make([]Object, 0, len(objs))

	for _, o := range objs {
		path, ok := o.(*Path)
		if !ok {
			next = append(next, o)
			continue
		}

		removed := false
		var runs [][]vector.Pt
		var cur []vector.Pt
		for i, pt := range path.Points {
			hit := sq(pt.X-p.X)+sq(pt.Y-p.Y) <= r2
			if !hit && i > 0 {
				hit = vector.DistToSegmentSq(p, path.Points[i-1], pt) <= r2
			}
			if hit {
				removed = true
				if len(cur) > 1 {
					runs = append(runs, cur)
				}
				cur = nil
				continue
			}
			cur = append(cur, pt)
		}
		if len(cur) > 1 {
			runs = append(runs, cur)
		}

		if !removed {
			next = append(next, o)
			continue
		}
		changed = true
		for _, run := range runs {
			piece := *path
			piece.ID = newID()
			piece.Points = append([]vector.Pt(nil), run...)
			next = append(next, &piece)
		}
	}

	if !changed {
		return objs, false
	}
	return next, true
}

func sq(v float64) float64 { return v * v }
