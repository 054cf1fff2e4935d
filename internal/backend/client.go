/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stickercanvas/internal/document"
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("server %s %s: %d", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// Client talks to a remote stickercanvas server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		se := &StatusError{Method: method, Path: u.Path, Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil {
			se.Message = payload.Error
		}
		return nil, se
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, dest any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}
	resp, err := c.do(ctx, method, path, "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Render asks the server to rasterize doc and returns PNG bytes.
func (c *Client) Render(ctx context.Context, doc document.Scene, watermark bool) ([]byte, error) {
	body, err := document.Encode(doc)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/render?watermark="+strconv.FormatBool(watermark), "application/json", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// GetDraft fetches the draft stored under key.
func (c *Client) GetDraft(ctx context.Context, key string) (document.Draft, error) {
	var d document.Draft
	err := c.doJSON(ctx, http.MethodGet, "/api/drafts/"+url.PathEscape(key), nil, &d)
	return d, err
}

// PutDraft stores doc under key and returns the stamped draft.
func (c *Client) PutDraft(ctx context.Context, key string, doc document.Scene) (document.Draft, error) {
	body, err := document.Encode(doc)
	if err != nil {
		return document.Draft{}, err
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/drafts/"+url.PathEscape(key), "application/json", body)
	if err != nil {
		return document.Draft{}, err
	}
	defer resp.Body.Close()
	var d document.Draft
	err = json.NewDecoder(resp.Body).Decode(&d)
	return d, err
}

// DeleteDraft removes the draft under key.
func (c *Client) DeleteDraft(ctx context.Context, key string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/drafts/"+url.PathEscape(key), nil, nil)
}

// GetDesign fetches one published design.
func (c *Client) GetDesign(ctx context.Context, id string) (document.Design, error) {
	var d document.Design
	err := c.doJSON(ctx, http.MethodGet, "/api/designs/"+url.PathEscape(id), nil, &d)
	return d, err
}

// PutDesign publishes d under id.
func (c *Client) PutDesign(ctx context.Context, id string, d document.Design) (document.Design, error) {
	var out document.Design
	err := c.doJSON(ctx, http.MethodPut, "/api/designs/"+url.PathEscape(id), d, &out)
	return out, err
}

// ListDesigns returns an author's designs.
func (c *Client) ListDesigns(ctx context.Context, author string, limit int) ([]document.Design, error) {
	q := url.Values{"author": {author}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var list []document.Design
	err := c.doJSON(ctx, http.MethodGet, "/api/designs?"+q.Encode(), nil, &list)
	return list, err
}
