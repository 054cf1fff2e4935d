/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file, a last-chance save of the
// open scene and a non-zero exit.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"stickercanvas/internal/document"
	applog "stickercanvas/internal/log"
	"stickercanvas/internal/version"
)

// EnvUploadURL opts in to posting crash reports.
const EnvUploadURL = "SCV_CRASH_UPLOAD_URL"

const uploadTimeout = 1500 * time.Millisecond

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Options configures Recover.
type Options struct {
	// ReportDir receives crash-*.log. Defaults to the temp dir.
	ReportDir string
	// Autosave persists whatever is being edited and describes where it went.
	Autosave func() (string, error)
	// UploadURL, when set, receives the report as text/plain.
	UploadURL string
	// Stderr receives the user-facing message. Defaults to os.Stderr.
	Stderr io.Writer
}

// OptionsFromEnv fills UploadURL from the environment.
func OptionsFromEnv(reportDir string, autosave func() (string, error)) Options {
	return Options{
		ReportDir: reportDir,
		Autosave:  autosave,
		UploadURL: strings.TrimSpace(os.Getenv(EnvUploadURL)),
	}
}

// Recover captures a panic, logs it with its stack, writes a report file,
// runs the autosave hook and exits with code 2.
//
// Usage: defer crash.Recover(opts)
func Recover(opts Options) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	report := buildReport(r, stack, time.Now())
	reportPath, err := writeReport(opts.ReportDir, report)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if opts.Autosave != nil {
		if where, err := safeAutosave(opts.Autosave); err != nil {
			l.Error("crash autosave failed", slog.Any("err", err))
		} else {
			l.Info("crash autosave written", slog.String("to", where))
		}
	}
	if opts.UploadURL != "" {
		if err := upload(opts.UploadURL, report); err != nil {
			l.Debug("crash upload failed", slog.Any("err", err))
		}
	}

	out := opts.Stderr
	if out == nil {
		out = os.Stderr
	}
	_, _ = fmt.Fprintf(out, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(out, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// safeAutosave keeps a second panic inside the hook from escaping.
func safeAutosave(fn func() (string, error)) (where string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("autosave panicked: %v", r)
		}
	}()
	return fn()
}

// DraftSaver is the part of the draft store the autosave needs.
type DraftSaver interface {
	Save(ctx context.Context, key string, doc document.Scene, savedAt time.Time) error
}

// DraftAutosave returns an Autosave hook writing state() to store under key.
func DraftAutosave(store DraftSaver, key string, state func() document.Scene) func() (string, error) {
	return func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Save(ctx, key, state(), time.Now()); err != nil {
			return "", err
		}
		return "draft:" + key, nil
	}
}

func buildReport(panicVal any, stack []byte, at time.Time) []byte {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Sticker Canvas Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", at.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))
	return buf.Bytes()
}

func writeReport(dir string, report []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(report); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}

func upload(url string, report []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(report))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("crash upload: %s", resp.Status)
	}
	return nil
}
