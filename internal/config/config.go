package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the fields crier needs: Broadcastify credentials and
// local storage locations. Credentials are read from the config file
// and held only in memory from there on.
type Config struct {
	Username    string
	Password    string
	BaseURL     string
	CacheDir    string
	DownloadDir string
	AutoLogout  bool
	PollSeconds int
}

const (
	defaultConfigPath  = "~/.config/crier/config.toml"
	defaultCacheDir    = "~/.cache/crier"
	defaultDownloadDir = "~/.local/share/crier/calls"
	defaultPollSeconds = 5
)

// Load locates and parses the crier config, falling back to defaults
// when the file is missing. Credentials may legitimately be absent; the
// session surfaces that at login time.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		CacheDir:    mustExpand(defaultCacheDir),
		DownloadDir: mustExpand(defaultDownloadDir),
		AutoLogout:  true,
		PollSeconds: defaultPollSeconds,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	raw := struct {
		Username    string `toml:"username"`
		Password    string `toml:"password"`
		BaseURL     string `toml:"base_url"`
		CacheDir    string `toml:"cache_dir"`
		DownloadDir string `toml:"download_dir"`
		AutoLogout  *bool  `toml:"auto_logout"`
		PollSeconds int    `toml:"poll_seconds"`
	}{}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Username = strings.TrimSpace(raw.Username)
	cfg.Password = raw.Password
	cfg.BaseURL = strings.TrimSpace(raw.BaseURL)

	if dir := strings.TrimSpace(raw.CacheDir); dir != "" {
		cfg.CacheDir = mustExpand(dir)
	}
	if dir := strings.TrimSpace(raw.DownloadDir); dir != "" {
		cfg.DownloadDir = mustExpand(dir)
	}
	if raw.AutoLogout != nil {
		cfg.AutoLogout = *raw.AutoLogout
	}
	if raw.PollSeconds > 0 {
		cfg.PollSeconds = raw.PollSeconds
	}

	return cfg, nil
}

// CachePath returns the location of the persistent call cache database.
func (c Config) CachePath() string {
	dir := c.CacheDir
	if strings.TrimSpace(dir) == "" {
		dir = mustExpand(defaultCacheDir)
	}
	return filepath.Join(dir, "calls.db")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
