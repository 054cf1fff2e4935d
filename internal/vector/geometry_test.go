/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	m := Placement(40, -12, 0.7, 1.5)
	p := Pt{3, 9}
	q := m.Invert().Apply(m.Apply(p))
	if math.Abs(q.X-p.X) > 1e-9 || math.Abs(q.Y-p.Y) > 1e-9 {
		t.Fatalf("inverse did not round trip: %+v", q)
	}
	if got := (Affine2D{}).Invert(); got != Identity {
		t.Fatalf("singular matrix should invert to identity, got %+v", got)
	}
}

func TestRotatePtQuarterTurn(t *testing.T) {
	p := RotatePt(Pt{1, 0}, math.Pi/2)
	if math.Abs(p.X) > 1e-9 || math.Abs(p.Y-1) > 1e-9 {
		t.Fatalf("unexpected rotation: %+v", p)
	}
}

func TestDistToSegmentSq(t *testing.T) {
	cases := []struct {
		p, a, b Pt
		want    float64
	}{
		{Pt{5, 3}, Pt{0, 0}, Pt{10, 0}, 9},
		{Pt{-4, 3}, Pt{0, 0}, Pt{10, 0}, 25},
		{Pt{2, 2}, Pt{1, 1}, Pt{1, 1}, 2},
	}
	for _, c := range cases {
		if got := DistToSegmentSq(c.p, c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("DistToSegmentSq(%v,%v,%v)=%v want %v", c.p, c.a, c.b, got, c.want)
		}
	}
}

func TestSampleAlong(t *testing.T) {
	if pts := SampleAlong(Pt{0, 0}, Pt{1, 0}, 2); len(pts) != 0 {
		t.Fatalf("short segment should yield no samples, got %v", pts)
	}
	pts := SampleAlong(Pt{0, 0}, Pt{10, 0}, 2)
	if len(pts) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(pts))
	}
	if pts[0].X != 2 || pts[4].X != 10 {
		t.Fatalf("unexpected sample positions: %v", pts)
	}
}
