/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"stickercanvas/internal/document"
	applog "stickercanvas/internal/log"
	"stickercanvas/internal/storage"
	"stickercanvas/internal/version"
)

const (
	maxSceneBody  = 8 << 20
	readyTimeout  = 2 * time.Second
	renderTimeout = 30 * time.Second
)

// DraftStore persists the single-slot local draft.
type DraftStore interface {
	Save(ctx context.Context, key string, doc document.Scene, savedAt time.Time) error
	Load(ctx context.Context, key string) (document.Draft, error)
	Delete(ctx context.Context, key string) error
}

// DesignStore persists published designs.
type DesignStore interface {
	SaveDesign(ctx context.Context, d document.Design) (document.Design, error)
	GetDesign(ctx context.Context, id string) (document.Design, error)
	ListByAuthor(ctx context.Context, author string, limit int) ([]document.Design, error)
	SearchDesigns(ctx context.Context, text string, limit int) ([]document.Design, error)
}

// RenderFunc turns a scene into PNG bytes.
type RenderFunc func(ctx context.Context, doc document.Scene, watermark bool) ([]byte, error)

// ServerOptions wires the HTTP surface. Nil stores disable their routes with
// 503 responses.
type ServerOptions struct {
	Drafts  DraftStore
	Designs DesignStore
	Render  RenderFunc
	// Token, when set, is required as a bearer token on every write.
	Token string
	// Ready is probed by /readyz.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
	Now    func() time.Time
}

// Server serves rendering, drafts and designs over HTTP.
type Server struct {
	opts   ServerOptions
	log    *slog.Logger
	router *mux.Router
}

// NewServer builds the router.
func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("server")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{opts: opts, log: opts.Logger}
	r := mux.NewRouter()
	r.Use(s.recovery)
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	r.HandleFunc("/version", s.version).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/render", s.render).Methods(http.MethodPost)
	api.HandleFunc("/drafts/{key}", s.getDraft).Methods(http.MethodGet)
	api.Handle("/drafts/{key}", s.withToken(s.putDraft)).Methods(http.MethodPut)
	api.Handle("/drafts/{key}", s.withToken(s.deleteDraft)).Methods(http.MethodDelete)
	api.HandleFunc("/designs", s.listDesigns).Methods(http.MethodGet)
	api.HandleFunc("/designs/{id}", s.getDesign).Methods(http.MethodGet)
	api.Handle("/designs/{id}", s.withToken(s.putDesign)).Methods(http.MethodPut)
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(version.String()))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	if s.opts.Render == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("rendering not configured"))
		return
	}
	watermark := true
	if v := r.URL.Query().Get("watermark"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			watermark = b
		}
	}
	// Unwatermarked output is for token holders only.
	if !watermark && !s.authorize(w, r) {
		return
	}
	doc, err := readScene(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()
	png, err := s.opts.Render(ctx, doc, watermark)
	if err != nil {
		s.log.ErrorContext(r.Context(), "render failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	if s.opts.Drafts == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("draft store not configured"))
		return
	}
	d, err := s.opts.Drafts.Load(r.Context(), mux.Vars(r)["key"])
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, document.ErrNoDraft):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) putDraft(w http.ResponseWriter, r *http.Request) {
	if s.opts.Drafts == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("draft store not configured"))
		return
	}
	doc, err := readScene(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	now := s.opts.Now()
	if err := s.opts.Drafts.Save(r.Context(), mux.Vars(r)["key"], doc, now); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, document.NewDraft(doc, now))
}

func (s *Server) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if s.opts.Drafts == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("draft store not configured"))
		return
	}
	if err := s.opts.Drafts.Delete(r.Context(), mux.Vars(r)["key"]); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDesigns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Designs == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("design repository not configured"))
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	var (
		list []document.Design
		err  error
	)
	switch {
	case strings.TrimSpace(q.Get("q")) != "":
		list, err = s.opts.Designs.SearchDesigns(r.Context(), q.Get("q"), limit)
	case q.Get("author") != "":
		list, err = s.opts.Designs.ListByAuthor(r.Context(), q.Get("author"), limit)
	default:
		writeError(w, http.StatusBadRequest, errors.New("author or q is required"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []document.Design{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getDesign(w http.ResponseWriter, r *http.Request) {
	if s.opts.Designs == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("design repository not configured"))
		return
	}
	d, err := s.opts.Designs.GetDesign(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, designStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) putDesign(w http.ResponseWriter, r *http.Request) {
	if s.opts.Designs == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("design repository not configured"))
		return
	}
	var d document.Design
	body := http.MaxBytesReader(w, r.Body, maxSceneBody)
	if err := json.NewDecoder(body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode design: %w", err))
		return
	}
	d.ID = mux.Vars(r)["id"]
	out, err := s.opts.Designs.SaveDesign(r.Context(), d)
	if err != nil {
		writeError(w, designStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func designStatus(err error) int {
	switch {
	case errors.Is(err, ErrDesignNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidDesignID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// readScene decodes and validates a scene document from the request body.
func readScene(w http.ResponseWriter, r *http.Request) (document.Scene, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSceneBody))
	if err != nil {
		return document.Scene{}, fmt.Errorf("read body: %w", err)
	}
	return document.Decode(raw)
}

// withToken guards writes with a static bearer token when one is configured.
func (s *Server) withToken(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(w, r) {
			return
		}
		next(w, r)
	})
}

// authorize checks the bearer token and writes a 401 when it is missing or
// wrong. Without a configured token every request is authorized.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.Token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
		return false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.Token)) != 1 {
		writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
		return false
	}
	return true
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic", slog.Any("panic", rec), slog.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := applog.ContextWith(r.Context(), slog.String("req", reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		s.log.DebugContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
