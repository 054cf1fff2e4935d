/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"strings"

	"github.com/gogpu/gg"
)

// ParseColor reads #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(...) and rgba(...)
// notations. Anything else yields fallback.
func ParseColor(s string, fallback gg.RGBA) gg.RGBA {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "":
		return fallback
	case s == "transparent":
		return gg.Transparent
	case strings.HasPrefix(s, "#"):
		switch len(s) {
		case 4, 5, 7, 9:
		default:
			return fallback
		}
		for _, c := range s[1:] {
			if !strings.ContainsRune("0123456789abcdef", c) {
				return fallback
			}
		}
		return gg.Hex(s)
	case strings.HasPrefix(s, "rgba("), strings.HasPrefix(s, "rgb("):
		inner := s[strings.IndexByte(s, '(')+1:]
		inner = strings.TrimSuffix(inner, ")")
		inner = strings.ReplaceAll(inner, ",", " ")
		var r, g, b float64
		a := 1.0
		n, _ := fmt.Sscan(inner, &r, &g, &b, &a)
		if n < 3 {
			return fallback
		}
		return gg.RGBA{R: clamp01(r / 255), G: clamp01(g / 255), B: clamp01(b / 255), A: clamp01(a)}
	default:
		return fallback
	}
}

func withAlpha(c gg.RGBA, a float64) gg.RGBA {
	c.A *= a
	return c
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
