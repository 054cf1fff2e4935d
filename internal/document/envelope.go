/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoDraft reports an absent, unreadable or empty draft.
var ErrNoDraft = errors.New("no draft")

// Draft wraps a scene with the time it was saved (unix milliseconds).
type Draft struct {
	State   Scene `json:"state"`
	SavedAt int64 `json:"savedAt"`
}

// NewDraft stamps s with at.
func NewDraft(s Scene, at time.Time) Draft {
	return Draft{State: s, SavedAt: at.UnixMilli()}
}

// SavedTime converts SavedAt back to a time.
func (d Draft) SavedTime() time.Time { return time.UnixMilli(d.SavedAt) }

// EncodeDraft marshals d.
func EncodeDraft(d Draft) ([]byte, error) {
	if d.State.Objects == nil {
		d.State.Objects = []Object{}
	}
	return json.Marshal(d)
}

// DecodeDraft accepts either the {state, savedAt} envelope or a bare scene.
// Malformed input and drafts without objects yield ErrNoDraft.
func DecodeDraft(raw []byte) (Draft, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Draft{}, ErrNoDraft
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrNoDraft, err)
	}
	var d Draft
	stateRaw := raw
	if st, ok := probe["state"]; ok {
		stateRaw = st
		if at, ok := probe["savedAt"]; ok {
			_ = json.Unmarshal(at, &d.SavedAt)
		}
	}
	if _, ok := probeObjects(stateRaw); !ok {
		return Draft{}, ErrNoDraft
	}
	s, err := Decode(stateRaw)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrNoDraft, err)
	}
	if len(s.Objects) == 0 {
		return Draft{}, ErrNoDraft
	}
	d.State = s
	return d, nil
}

func probeObjects(raw []byte) (int, bool) {
	var v struct {
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(raw, &v); err != nil || v.Objects == nil {
		return 0, false
	}
	return len(v.Objects), true
}

// Design is a published composition as stored remotely. Likes is carried
// but never changed here.
type Design struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Likes     int64     `json:"likes"`
	State     Scene     `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
