/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the per-user
// config directory, overridden by SCV_* environment variables. The backend
// token never touches the file; it lives in the OS keychain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	applog "stickercanvas/internal/log"
)

// CurrentVersion is written to config_version by Save.
const CurrentVersion = 2

type GeneralConfig struct {
	Theme string `yaml:"theme"` // "system" | "light" | "dark"
}

type EditorConfig struct {
	CanvasSize   int     `yaml:"canvas_size"`
	DPR          float64 `yaml:"dpr"`
	WatermarkURL string  `yaml:"watermark_url"`
	HistoryDepth int     `yaml:"history_depth"`
	// AssetDir resolves relative asset URLs.
	AssetDir string `yaml:"asset_dir"`
	// AssetHosts lists the hosts the render endpoint may fetch assets from.
	AssetHosts []string `yaml:"asset_hosts,omitempty"`
	// Fonts maps a family name to a TTF/OTF file.
	Fonts map[string]string `yaml:"fonts,omitempty"`
}

type StorageConfig struct {
	// DraftDB is the SQLite draft database. Empty uses the default location.
	DraftDB         string `yaml:"draft_db"`
	DraftKey        string `yaml:"draft_key"`
	KeepCheckpoints int    `yaml:"keep_checkpoints"`
}

type BackendConfig struct {
	// BaseURL is the remote server used by the client commands.
	BaseURL string `yaml:"base_url"`
	// DSN is the Postgres connection string for the design repository.
	DSN        string `yaml:"dsn"`
	ListenAddr string `yaml:"listen_addr"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Source     bool   `yaml:"source"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// AppConfig is the user-editable configuration.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Editor        EditorConfig  `yaml:"editor"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{Theme: "system"},
		Editor:        EditorConfig{CanvasSize: 900, DPR: 1, HistoryDepth: 50},
		Storage:       StorageConfig{DraftKey: "design_draft_v1", KeepCheckpoints: 20},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", ListenAddr: ":8080", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir        = "SCV_CONFIG_DIR"
	EnvBackendURL       = "SCV_BACKEND_URL"
	EnvBackendDSN       = "SCV_PG_DSN"
	EnvListenAddr       = "SCV_LISTEN_ADDR"
	EnvBackendTimeoutMs = "SCV_BACKEND_TIMEOUT_MS"
	EnvCanvasSize       = "SCV_CANVAS_SIZE"
	EnvDPR              = "SCV_DPR"
	EnvWatermarkURL     = "SCV_WATERMARK_URL"
	EnvHistoryDepth     = "SCV_HISTORY_DEPTH"
	EnvAssetDir         = "SCV_ASSET_DIR"
	EnvDraftDB          = "SCV_DRAFT_DB"
	EnvLogLevel         = "SCV_LOG_LEVEL"
	EnvLogFormat        = "SCV_LOG_FORMAT"
	EnvLogSource        = "SCV_LOG_SOURCE"
	EnvLogFile          = "SCV_LOG_FILE"
)

// envOverrides mirrors the Env* names; unset variables leave nil pointers.
type envOverrides struct {
	BackendURL       *string  `envconfig:"BACKEND_URL"`
	BackendDSN       *string  `envconfig:"PG_DSN"`
	ListenAddr       *string  `envconfig:"LISTEN_ADDR"`
	BackendTimeoutMs *int     `envconfig:"BACKEND_TIMEOUT_MS"`
	CanvasSize       *int     `envconfig:"CANVAS_SIZE"`
	DPR              *float64 `envconfig:"DPR"`
	WatermarkURL     *string  `envconfig:"WATERMARK_URL"`
	HistoryDepth     *int     `envconfig:"HISTORY_DEPTH"`
	AssetDir         *string  `envconfig:"ASSET_DIR"`
	DraftDB          *string  `envconfig:"DRAFT_DB"`
	LogLevel         *string  `envconfig:"LOG_LEVEL"`
	LogFormat        *string  `envconfig:"LOG_FORMAT"`
	LogSource        *bool    `envconfig:"LOG_SOURCE"`
	LogFile          *string  `envconfig:"LOG_FILE"`
}

// envKeys maps dotted config keys to the variable overriding them.
var envKeys = map[string]string{
	"backend.base_url":     EnvBackendURL,
	"backend.dsn":          EnvBackendDSN,
	"backend.listen_addr":  EnvListenAddr,
	"backend.timeout_ms":   EnvBackendTimeoutMs,
	"editor.canvas_size":   EnvCanvasSize,
	"editor.dpr":           EnvDPR,
	"editor.watermark_url": EnvWatermarkURL,
	"editor.history_depth": EnvHistoryDepth,
	"editor.asset_dir":     EnvAssetDir,
	"storage.draft_db":     EnvDraftDB,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// Keychain service and account for the backend token.
const (
	keyringService = "StickerCanvas"
	keyringToken   = "backend_token"
)

// TokenStore abstracts the keychain so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore with github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) {
	v, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }

func (osKeyring) Delete(service, key string) error {
	if err := keyring.Delete(service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the keychain backend and returns a func restoring the
// previous one.
func SetTokenStore(ts TokenStore) (restore func()) {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

// ConfigDir returns the per-user config directory. SCV_CONFIG_DIR wins.
func ConfigDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "StickerCanvas")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "StickerCanvas")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "stickercanvas")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "stickercanvas")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. The backend token is read from the keychain and
// returned separately; a keychain that cannot be reached yields an empty token.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, "", err
	}
	tok, err := tokenStore.Get(keyringService, keyringToken)
	if err != nil {
		applog.WithComponent("config").Debug("keychain unavailable", "err", err)
		tok = ""
	}
	return cfg, tok, nil
}

// LoadFile is Load for an explicit path, without the keychain. A missing
// file yields defaults; a malformed one is an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the user config YAML and stores the token in the keychain
// when non-empty.
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := SaveFile(path, cfg); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// SaveFile writes cfg to path through a temp file.
func SaveFile(path string, cfg AppConfig) error {
	cfg.ConfigVersion = CurrentVersion
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ClearToken removes the backend token from the keychain.
func ClearToken() error { return tokenStore.Delete(keyringService, keyringToken) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// editor
	if src.Editor.CanvasSize > 0 {
		dst.Editor.CanvasSize = src.Editor.CanvasSize
	}
	if src.Editor.DPR > 0 {
		dst.Editor.DPR = src.Editor.DPR
	}
	if s := strings.TrimSpace(src.Editor.WatermarkURL); s != "" {
		dst.Editor.WatermarkURL = s
	}
	if src.Editor.HistoryDepth > 0 {
		dst.Editor.HistoryDepth = src.Editor.HistoryDepth
	}
	if s := strings.TrimSpace(src.Editor.AssetDir); s != "" {
		dst.Editor.AssetDir = s
	}
	if len(src.Editor.AssetHosts) > 0 {
		dst.Editor.AssetHosts = append([]string(nil), src.Editor.AssetHosts...)
	}
	if len(src.Editor.Fonts) > 0 {
		dst.Editor.Fonts = make(map[string]string, len(src.Editor.Fonts))
		for k, v := range src.Editor.Fonts {
			dst.Editor.Fonts[k] = v
		}
	}
	// storage
	if s := strings.TrimSpace(src.Storage.DraftDB); s != "" {
		dst.Storage.DraftDB = s
	}
	if s := strings.TrimSpace(src.Storage.DraftKey); s != "" {
		dst.Storage.DraftKey = s
	}
	if src.Storage.KeepCheckpoints > 0 {
		dst.Storage.KeepCheckpoints = src.Storage.KeepCheckpoints
	}
	// backend
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.DSN != "" {
		dst.Backend.DSN = src.Backend.DSN
	}
	if src.Backend.ListenAddr != "" {
		dst.Backend.ListenAddr = src.Backend.ListenAddr
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	if src.Logging.MaxSizeMB > 0 {
		dst.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		dst.Logging.MaxBackups = src.Logging.MaxBackups
	}
}

func applyEnvOverrides(cfg *AppConfig) error {
	var env envOverrides
	if err := envconfig.Process("SCV", &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	setString(&cfg.Backend.BaseURL, env.BackendURL)
	setString(&cfg.Backend.DSN, env.BackendDSN)
	setString(&cfg.Backend.ListenAddr, env.ListenAddr)
	if env.BackendTimeoutMs != nil {
		cfg.Backend.TimeoutMs = *env.BackendTimeoutMs
	}
	if env.CanvasSize != nil && *env.CanvasSize > 0 {
		cfg.Editor.CanvasSize = *env.CanvasSize
	}
	if env.DPR != nil && *env.DPR > 0 {
		cfg.Editor.DPR = *env.DPR
	}
	setString(&cfg.Editor.WatermarkURL, env.WatermarkURL)
	if env.HistoryDepth != nil && *env.HistoryDepth > 0 {
		cfg.Editor.HistoryDepth = *env.HistoryDepth
	}
	setString(&cfg.Editor.AssetDir, env.AssetDir)
	setString(&cfg.Storage.DraftDB, env.DraftDB)
	if env.LogLevel != nil && strings.TrimSpace(*env.LogLevel) != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*env.LogLevel))
	}
	if env.LogFormat != nil && strings.TrimSpace(*env.LogFormat) != "" {
		cfg.Logging.Format = strings.ToLower(strings.TrimSpace(*env.LogFormat))
	}
	if env.LogSource != nil {
		cfg.Logging.Source = *env.LogSource
	}
	setString(&cfg.Logging.File, env.LogFile)
	return nil
}

func setString(dst *string, v *string) {
	if v == nil {
		return
	}
	if s := strings.TrimSpace(*v); s != "" {
		*dst = s
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// LogOptions converts the logging section for log.Init.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:      l.Level,
		Format:     l.Format,
		AddSource:  l.Source,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
	}
}
