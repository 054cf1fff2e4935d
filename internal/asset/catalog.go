/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package asset

import (
	"errors"
	"regexp"
	"sync"
)

// ErrLocked is returned when placing an asset the user has not unlocked.
var ErrLocked = errors.New("asset is locked")

// Group is the catalog tab an asset is listed under.
type Group string

const (
	GroupMobby Group = "mobby"
	GroupLucky Group = "lucky"
	GroupLogo  Group = "logo"
)

// Groups lists the tabs in display order.
var Groups = []Group{GroupMobby, GroupLucky, GroupLogo}

var mobbyPattern = regexp.MustCompile(`モビ[ィー]`)

// Asset is one catalog entry pushed in by the host application.
type Asset struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Locked bool   `json:"locked"`
}

// GroupOf classifies an asset by name and URL.
func GroupOf(a Asset) Group {
	switch {
	case a.Name == "Logo":
		return GroupLogo
	case mobbyPattern.MatchString(a.Name), mobbyPattern.MatchString(a.URL):
		return GroupMobby
	default:
		return GroupLucky
	}
}

// Catalog is the current asset list. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	assets []Asset
}

// Set replaces the catalog contents.
func (c *Catalog) Set(list []Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets = append([]Asset(nil), list...)
}

// All returns a copy of the catalog in insertion order.
func (c *Catalog) All() []Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Asset(nil), c.assets...)
}

// Grouped buckets the catalog by Group, preserving order inside each bucket.
func (c *Catalog) Grouped() map[Group][]Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Group][]Asset, len(Groups))
	for _, a := range c.assets {
		g := GroupOf(a)
		out[g] = append(out[g], a)
	}
	return out
}

// Lookup finds an asset by URL first and then by name.
func (c *Catalog) Lookup(url, name string) (Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.assets {
		if url != "" && a.URL == url {
			return a, true
		}
	}
	for _, a := range c.assets {
		if name != "" && a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// CheckPlaceable returns ErrLocked when url/name names a locked catalog
// entry. Assets unknown to the catalog are placeable.
func (c *Catalog) CheckPlaceable(url, name string) error {
	if a, ok := c.Lookup(url, name); ok && a.Locked {
		return ErrLocked
	}
	return nil
}
