/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"stickercanvas/internal/asset"
	"stickercanvas/internal/backend"
	"stickercanvas/internal/config"
	"stickercanvas/internal/document"
	"stickercanvas/internal/editor"
	"stickercanvas/internal/storage"
	"stickercanvas/internal/textlayout"
)

type usageError string

func (e usageError) Error() string { return string(e) }

type cli struct {
	cfg   config.AppConfig
	token string
	log   *slog.Logger
	out   io.Writer
}

func (c *cli) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

type renderArgs struct {
	in, out   string
	watermark bool
	remote    bool
}

func parseRenderArgs(args []string) (renderArgs, error) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	noWatermark := fs.Bool("no-watermark", false, "skip the watermark")
	remote := fs.Bool("remote", false, "render on the configured server")
	if err := fs.Parse(args); err != nil {
		return renderArgs{}, usageError("render: " + err.Error())
	}
	if fs.NArg() != 2 {
		return renderArgs{}, usageError("render requires <scene.json> and <out.png>")
	}
	return renderArgs{in: fs.Arg(0), out: fs.Arg(1), watermark: !*noWatermark, remote: *remote}, nil
}

func (c *cli) render(ctx context.Context, args []string) error {
	ra, err := parseRenderArgs(args)
	if err != nil {
		return err
	}
	doc, err := storage.ReadDocumentFile(ra.in)
	if err != nil {
		return err
	}
	inFlight = &doc
	c.log.Info("render", slog.String("in", ra.in), slog.Int("objects", len(doc.Objects)), slog.Bool("remote", ra.remote))

	var png []byte
	if ra.remote {
		png, err = backend.NewClient(c.cfg.Backend.BaseURL, c.token).Render(ctx, doc, ra.watermark)
	} else {
		png, err = c.renderLocal(ctx, doc, ra.watermark)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(ra.out, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ra.out, err)
	}
	fmt.Fprintf(c.stdout(), "Wrote %s (%d bytes)\n", ra.out, len(png))
	return nil
}

func (c *cli) renderLocal(ctx context.Context, doc document.Scene, watermark bool) ([]byte, error) {
	opts, closeFonts, err := c.editorOptions()
	if err != nil {
		return nil, err
	}
	defer closeFonts()
	return editor.RenderDocument(ctx, doc, opts, watermark)
}

// editorOptions builds session options from config. The returned func
// releases the font library.
func (c *cli) editorOptions() (editor.Options, func(), error) {
	fonts, err := textlayout.NewLibrary()
	if err != nil {
		return editor.Options{}, nil, err
	}
	for family, path := range c.cfg.Editor.Fonts {
		if err := fonts.LoadFile(family, path); err != nil {
			c.log.Warn("font load failed", slog.String("family", family), slog.Any("err", err))
		}
	}
	opts := editor.Options{
		Width:        c.cfg.Editor.CanvasSize,
		DPR:          c.cfg.Editor.DPR,
		Loader:       asset.NewHTTPLoader(c.cfg.Editor.AssetDir, c.cfg.Backend.Timeout()),
		Fonts:        fonts,
		HistoryDepth: c.cfg.Editor.HistoryDepth,
		WatermarkURL: c.cfg.Editor.WatermarkURL,
	}
	return opts, func() { _ = fonts.Close() }, nil
}

func (c *cli) draft(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("draft requires show|clear|import|export|history")
	}
	store, err := openDrafts(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	key := draftKey(c.cfg)
	out := c.stdout()

	switch args[0] {
	case "show":
		d, err := store.Load(ctx, key)
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, document.ErrNoDraft) {
			fmt.Fprintln(out, "No draft saved.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved: %s\n", d.SavedTime().Format(time.RFC3339))
		fmt.Fprintf(out, "Objects: %d\n", len(d.State.Objects))
		raw, err := document.Encode(d.State)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(raw))
		return err
	case "clear":
		if err := store.Delete(ctx, key); err != nil {
			return err
		}
		fmt.Fprintln(out, "Draft cleared.")
		return nil
	case "import":
		if len(args) < 2 {
			return usageError("draft import requires <scene.json>")
		}
		doc, err := storage.ReadDocumentFile(args[1])
		if err != nil {
			return err
		}
		inFlight = &doc
		if err := store.Save(ctx, key, doc, time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Imported %d objects into draft %q.\n", len(doc.Objects), key)
		return nil
	case "export":
		if len(args) < 2 {
			return usageError("draft export requires <scene.json>")
		}
		d, err := store.Load(ctx, key)
		if err != nil {
			return err
		}
		if err := storage.WriteDocumentFile(args[1], d.State); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", args[1])
		return nil
	case "history":
		cps, err := store.Checkpoints(ctx, key, 0)
		if err != nil {
			return err
		}
		if len(cps) == 0 {
			fmt.Fprintln(out, "No checkpoints.")
			return nil
		}
		for _, cp := range cps {
			fmt.Fprintf(out, "%s  %d objects\n", cp.At.Format(time.RFC3339), len(cp.Draft.State.Objects))
		}
		return nil
	default:
		return usageError(fmt.Sprintf("unknown draft command %q", args[0]))
	}
}

func (c *cli) tokenCmd(args []string) error {
	if len(args) == 0 {
		return usageError("token requires set <token> or clear")
	}
	switch args[0] {
	case "set":
		if len(args) < 2 || args[1] == "" {
			return usageError("token set requires <token>")
		}
		if err := config.Save(c.cfg, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout(), "Token stored in the OS keychain.")
		return nil
	case "clear":
		if err := config.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout(), "Token removed.")
		return nil
	default:
		return usageError(fmt.Sprintf("unknown token command %q", args[0]))
	}
}

func (c *cli) serve(ctx context.Context) error {
	drafts, err := openDrafts(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = drafts.Close() }()

	opts, closeFonts, err := c.editorOptions()
	if err != nil {
		return err
	}
	defer closeFonts()

	// Render requests are unauthenticated; keep their asset URLs inside
	// the asset dir and the configured hosts.
	opts.WatermarkLoader = opts.Loader
	opts.Loader = asset.NewConfinedLoader(c.cfg.Editor.AssetDir, c.cfg.Editor.AssetHosts, c.cfg.Backend.Timeout())

	so := backend.ServerOptions{
		Drafts: drafts,
		Token:  c.token,
		Render: func(ctx context.Context, doc document.Scene, watermark bool) ([]byte, error) {
			return editor.RenderDocument(ctx, doc, opts, watermark)
		},
	}
	if dsn := c.cfg.Backend.DSN; dsn != "" {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		repo, err := backend.OpenRepository(openCtx, dsn)
		cancel()
		if err != nil {
			return err
		}
		defer func() { _ = repo.Close() }()
		so.Designs = repo
		so.Ready = repo.Ping
	} else {
		c.log.Warn("no database configured; design routes disabled")
	}
	return backend.NewServer(so).ListenAndServe(ctx, c.cfg.Backend.ListenAddr)
}
