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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"stickercanvas/internal/config"
	"stickercanvas/internal/crash"
	"stickercanvas/internal/document"
	applog "stickercanvas/internal/log"
	"stickercanvas/internal/storage"
	"stickercanvas/internal/version"
)

func usage() {
	fmt.Println("Sticker Canvas")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  stickercanvas version|-v|--version                         Show version")
	fmt.Println("  stickercanvas render [--no-watermark] [--remote] <scene.json> <out.png>")
	fmt.Println("                                                             Render a scene document to PNG")
	fmt.Println("  stickercanvas draft show                                   Print the saved draft")
	fmt.Println("  stickercanvas draft clear                                  Delete the saved draft")
	fmt.Println("  stickercanvas draft import <scene.json>                    Replace the draft with a scene file")
	fmt.Println("  stickercanvas draft export <scene.json>                    Write the draft to a scene file")
	fmt.Println("  stickercanvas draft history                                List draft checkpoints")
	fmt.Println("  stickercanvas token set <token> | token clear              Manage the backend token in the OS keychain")
	fmt.Println("  stickercanvas serve                                        Run the HTTP server")
}

// inFlight is the scene the running command is working on; the crash
// handler saves it as the draft.
var inFlight *document.Scene

func main() {
	cfg, token, cfgErr := config.Load()
	applog.Init(cfg.Logging.LogOptions())
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", cfgErr))
	}

	reportDir := ""
	if dir, err := config.ConfigDir(); err == nil {
		reportDir = filepath.Join(dir, "crash")
	}
	defer crash.Recover(crash.OptionsFromEnv(reportDir, autosaveInFlight(cfg)))

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli{cfg: cfg, token: token, log: l}
	var err error
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Sticker Canvas")
		fmt.Println(version.String())
		return
	case "render":
		err = app.render(ctx, args[2:])
	case "draft":
		err = app.draft(ctx, args[2:])
	case "token":
		err = app.tokenCmd(args[2:])
	case "serve":
		err = app.serve(ctx)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Printf("unknown command %q\n", args[1])
		usage()
		exit(2)
		return
	}
	if err != nil {
		if ue, ok := err.(usageError); ok {
			fmt.Println(ue.Error())
			usage()
			exit(2)
			return
		}
		l.Error("command failed", slog.String("cmd", args[1]), slog.Any("err", err))
		fmt.Println("Error:", err)
		exit(1)
	}
}

// exit flushes the log file before leaving; deferred calls do not run.
func exit(code int) {
	_ = applog.Close()
	os.Exit(code)
}

func autosaveInFlight(cfg config.AppConfig) func() (string, error) {
	return func() (string, error) {
		if inFlight == nil {
			return "nothing to save", nil
		}
		store, err := openDrafts(context.Background(), cfg)
		if err != nil {
			return "", err
		}
		defer func() { _ = store.Close() }()
		doc := *inFlight
		return crash.DraftAutosave(store, draftKey(cfg), func() document.Scene { return doc })()
	}
}

func openDrafts(ctx context.Context, cfg config.AppConfig) (*storage.DraftStore, error) {
	path := cfg.Storage.DraftDB
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	db, err := storage.OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return storage.NewDraftStore(db, cfg.Storage.KeepCheckpoints), nil
}

func draftKey(cfg config.AppConfig) string {
	if cfg.Storage.DraftKey != "" {
		return cfg.Storage.DraftKey
	}
	return storage.DefaultDraftKey
}
