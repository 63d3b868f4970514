// Package config loads and saves Grove's on-disk configuration: agent
// launch command overrides, the default capture history limit, and the
// sidebar defaults new projects start with. Parsing and CLI flags are
// external collaborators per the workspace-manager spec, but the ambient
// concern of "some file holds these settings" still needs a real home —
// this package is it, grounded on the teacher's
// internal/session/userconfig.go TOML config layer.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jordangarrison/grove/internal/domain"
)

// FileName is the global config file, stored under GroveDir.
const FileName = "config.toml"

// AgentCommands overrides the default launch command per agent kind.
// Values here are consulted only when the matching
// AgentKind.CommandOverrideEnvVar is unset; the environment variable always
// wins (spec §6 "Environment overrides").
type AgentCommands struct {
	Claude   string `toml:"claude"`
	Codex    string `toml:"codex"`
	OpenCode string `toml:"opencode"`
}

// SidebarDefaults seeds a new project's persisted layout state (spec §6
// "Persisted state") before any explicit change event has occurred.
type SidebarDefaults struct {
	WidthPercent int  `toml:"width_percent"`
	Visible      bool `toml:"visible"`
}

// WorktreeSettings controls where `grove worktree create` places a new
// workspace's directory, mirroring the teacher's own
// internal/session/userconfig.go Worktree section.
type WorktreeSettings struct {
	// DefaultLocation: "sibling" (next to the repo, e.g. "repo-branch"),
	// "subdirectory" (under "<repo>/.worktrees/<branch>"), or a filesystem
	// path (possibly "~"-prefixed) under which "<repo-name>/<branch>" is
	// created. Empty behaves like "sibling".
	DefaultLocation string `toml:"default_location"`
}

// Config is Grove's global, cross-project configuration.
type Config struct {
	Agents AgentCommands `toml:"agents"`

	// DefaultHistoryLimit bounds a fresh session's OutputBuffer before the
	// Capture Processor's own domain.OutputBufferCapacity trim takes over.
	DefaultHistoryLimit int `toml:"default_history_limit"`

	Sidebar  SidebarDefaults  `toml:"sidebar"`
	Worktree WorktreeSettings `toml:"worktree"`
}

// Default returns the configuration used when no config.toml exists yet.
func Default() *Config {
	return &Config{
		DefaultHistoryLimit: domain.OutputBufferCapacity,
		Sidebar: SidebarDefaults{
			WidthPercent: 30,
			Visible:      true,
		},
		Worktree: WorktreeSettings{
			DefaultLocation: "sibling",
		},
	}
}

// CommandFor resolves the launch command for an agent kind: the
// environment override wins if set to a non-blank value, otherwise the
// config file's override, otherwise fallback.
func (c *Config) CommandFor(kind domain.AgentKind, fallback string) string {
	if envVar := kind.CommandOverrideEnvVar(); envVar != "" {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return v
		}
	}
	switch kind {
	case domain.AgentClaude:
		if c.Agents.Claude != "" {
			return c.Agents.Claude
		}
	case domain.AgentCodex:
		if c.Agents.Codex != "" {
			return c.Agents.Codex
		}
	case domain.AgentOpenCode:
		if c.Agents.OpenCode != "" {
			return c.Agents.OpenCode
		}
	}
	return fallback
}

var (
	cacheMu sync.RWMutex
	cache   *Config
)

// GroveDir returns the directory Grove's global state lives under
// ($HOME/.grove), mirroring the teacher's GetAgentDeckDir.
func GroveDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".grove"), nil
}

func path() (string, error) {
	dir, err := GroveDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads config.toml, caching the result. A missing file is not an
// error: it yields Default().
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	p, err := path()
	if err != nil {
		cache = Default()
		return cache, nil
	}

	if _, err := os.Stat(p); os.IsNotExist(err) {
		cache = Default()
		return cache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(p, &cfg); err != nil {
		cache = Default()
		return cache, fmt.Errorf("%s: %w", FileName, err)
	}
	if cfg.DefaultHistoryLimit <= 0 {
		cfg.DefaultHistoryLimit = domain.OutputBufferCapacity
	}
	if cfg.Sidebar.WidthPercent == 0 {
		cfg.Sidebar.WidthPercent = 30
	}
	if cfg.Worktree.DefaultLocation == "" {
		cfg.Worktree.DefaultLocation = "sibling"
	}
	cache = &cfg
	return cache, nil
}

// Reload discards the cache and re-reads from disk.
func Reload() (*Config, error) {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
	return Load()
}

// ClearCache drops the cached config so the next Load reads fresh; used by
// tests.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// Save writes cfg to config.toml using the write-temp/fsync/rename pattern,
// then invalidates the cache so the next Load sees the change.
func Save(cfg *Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("create grove dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# Grove configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := p + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if f, err := os.Open(tmpPath); err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize config save: %w", err)
	}

	ClearCache()
	return nil
}
