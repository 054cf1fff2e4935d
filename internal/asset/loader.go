/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package asset fetches and decodes the raster images a composition is built
// from: sticker assets, the template background and the export watermark.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"
)

// MaxBytes bounds a single fetched asset.
const MaxBytes = 32 << 20

// ErrNotFound is returned by in-memory loaders for unknown URLs.
var ErrNotFound = errors.New("asset not found")

// Loader resolves an asset URL to a decoded image.
type Loader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// Result is the outcome of one load in a batch. Exactly one of Image and Err
// is set.
type Result struct {
	URL   string
	Image image.Image
	Err   error
}

// OK reports whether the load succeeded.
func (r Result) OK() bool { return r.Err == nil && r.Image != nil }

// ErrOutsideBase is returned for local paths that would leave BaseDir.
var ErrOutsideBase = errors.New("asset path escapes base dir")

// ErrRemoteDenied is returned for http(s) URLs whose host is not allowed.
var ErrRemoteDenied = errors.New("remote asset host not allowed")

// HTTPLoader loads http(s) URLs, data: URLs and local files.
//
// With BaseDir set, local paths are relative to it and may not leave it:
// absolute paths, file:// URLs and .. escapes are refused. A confined loader
// additionally reads no local files without a BaseDir and fetches only from
// Hosts.
type HTTPLoader struct {
	BaseDir  string
	Confined bool
	// Hosts lists the hostnames a confined loader may fetch from.
	Hosts  []string
	client *http.Client
}

// NewHTTPLoader creates a loader whose HTTP requests time out after timeout
// (10s when zero).
func NewHTTPLoader(baseDir string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{BaseDir: baseDir, client: &http.Client{Timeout: timeout}}
}

// NewConfinedLoader is NewHTTPLoader for documents from untrusted callers.
func NewConfinedLoader(baseDir string, hosts []string, timeout time.Duration) *HTTPLoader {
	l := NewHTTPLoader(baseDir, timeout)
	l.Confined = true
	l.Hosts = hosts
	return l
}

func (l *HTTPLoader) Load(ctx context.Context, url string) (image.Image, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("empty asset url")
	}
	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(url, "data:"):
		_, data, err = DecodeDataURL(url)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		data, err = l.fetch(ctx, url)
	default:
		data, err = l.readFile(url)
	}
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", shortURL(url), err)
	}
	return img, nil
}

func (l *HTTPLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if l.Confined && !l.hostAllowed(req.URL.Hostname()) {
		return nil, fmt.Errorf("fetch %s: %w", shortURL(url), ErrRemoteDenied)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > MaxBytes {
		return nil, fmt.Errorf("fetch %s: asset exceeds %d bytes", url, MaxBytes)
	}
	return data, nil
}

func (l *HTTPLoader) hostAllowed(host string) bool {
	for _, h := range l.Hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

func (l *HTTPLoader) readFile(p string) ([]byte, error) {
	if l.BaseDir == "" {
		if l.Confined {
			return nil, fmt.Errorf("read asset %s: %w", shortURL(p), ErrOutsideBase)
		}
		f, err := os.Open(strings.TrimPrefix(p, "file://"))
		if err != nil {
			return nil, fmt.Errorf("read asset: %w", err)
		}
		defer f.Close()
		return readLimited(f, p)
	}

	rel := filepath.FromSlash(p)
	if strings.HasPrefix(p, "file://") || filepath.IsAbs(rel) || strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("read asset %s: %w", shortURL(p), ErrOutsideBase)
	}
	rel = filepath.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("read asset %s: %w", shortURL(p), ErrOutsideBase)
	}
	root, err := os.OpenRoot(l.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("open asset dir: %w", err)
	}
	defer root.Close()
	// Root also refuses symlinks that resolve outside BaseDir.
	f, err := root.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	defer f.Close()
	return readLimited(f, p)
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	if len(data) > MaxBytes {
		return nil, fmt.Errorf("read %s: asset exceeds %d bytes", shortURL(name), MaxBytes)
	}
	return data, nil
}

// Decode decodes a png, jpeg, gif or webp stream.
func Decode(r io.Reader) (image.Image, string, error) {
	return image.Decode(r)
}

// LoadAll loads every url concurrently and returns results in input order.
func LoadAll(ctx context.Context, l Loader, urls []string) []Result {
	out := make([]Result, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			img, err := l.Load(ctx, u)
			if err == nil && img == nil {
				err = fmt.Errorf("load %s: no image", shortURL(u))
			}
			out[i] = Result{URL: u, Image: img, Err: err}
		}(i, u)
	}
	wg.Wait()
	return out
}

// StaticLoader serves pre-decoded images by URL.
type StaticLoader map[string]image.Image

func (s StaticLoader) Load(ctx context.Context, url string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok := s[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, shortURL(url))
	}
	return img, nil
}

// shortURL keeps data: URLs out of log lines and error messages.
func shortURL(u string) string {
	if strings.HasPrefix(u, "data:") {
		if i := strings.IndexByte(u, ','); i > 0 {
			return u[:i] + ",…"
		}
	}
	return u
}
