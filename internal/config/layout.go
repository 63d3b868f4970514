package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LayoutState is the single persisted-on-explicit-change record described
// in spec §6: sidebar width percentage and visibility, keyed externally by
// the canonical project path. Everything else about the TUI's layout is
// re-derived at startup.
type LayoutState struct {
	SidebarWidthPercent int  `toml:"sidebar_width_percent"`
	SidebarVisible      bool `toml:"sidebar_visible"`
}

// layoutFileName derives a stable, filesystem-safe file name for one
// project's layout record from its canonical path.
func layoutFileName(canonicalProjectPath string) string {
	sum := fnv32(canonicalProjectPath)
	return fmt.Sprintf("layout-%08x.toml", sum)
}

// fnv32 is a small non-cryptographic hash, sufficient to key layout files
// by project path without leaking the path itself into the file name.
func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

func layoutPath(canonicalProjectPath string) (string, error) {
	dir, err := GroveDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "layouts", layoutFileName(canonicalProjectPath)), nil
}

// LoadLayout reads a project's persisted layout state, falling back to the
// global Sidebar defaults when no record exists yet.
func LoadLayout(canonicalProjectPath string) (*LayoutState, error) {
	p, err := layoutPath(canonicalProjectPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		cfg, err := Load()
		if err != nil {
			return nil, err
		}
		return &LayoutState{
			SidebarWidthPercent: cfg.Sidebar.WidthPercent,
			SidebarVisible:      cfg.Sidebar.Visible,
		}, nil
	}

	var state LayoutState
	if _, err := toml.DecodeFile(p, &state); err != nil {
		return nil, fmt.Errorf("decode layout state: %w", err)
	}
	return &state, nil
}

// SaveLayout persists a project's layout state on an explicit change event
// (spec §6: "written on explicit change events only"), atomically.
func SaveLayout(canonicalProjectPath string, state *LayoutState) error {
	p, err := layoutPath(canonicalProjectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("create layouts dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(state); err != nil {
		return fmt.Errorf("encode layout state: %w", err)
	}

	tmpPath := p + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write temp layout state: %w", err)
	}
	if f, err := os.Open(tmpPath); err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize layout save: %w", err)
	}
	return nil
}
