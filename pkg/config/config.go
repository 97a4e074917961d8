// Package config handles loading and saving depcity configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/depcity/config.yaml
//   - Data:    ~/.local/share/depcity/ (snapshot cache database)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/depcity/pkg/layout"
	"github.com/vanderheijden86/depcity/pkg/spatial"
)

const appName = "depcity"

// Repo is a remembered repository.
type Repo struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LayoutConfig sizes the 2D hierarchical layout.
type LayoutConfig struct {
	Columns    int     `yaml:"columns,omitempty"`
	NodeWidth  float64 `yaml:"node_width,omitempty"`
	NodeHeight float64 `yaml:"node_height,omitempty"`
	RankSep    float64 `yaml:"rank_sep,omitempty"`
	NodeSep    float64 `yaml:"node_sep,omitempty"`
	GridMargin float64 `yaml:"grid_margin,omitempty"`
	GridGap    float64 `yaml:"grid_gap,omitempty"`
}

// SpatialConfig tunes the 3D city simulation.
type SpatialConfig struct {
	AutoSave       bool `yaml:"auto_save"`
	Scatter        bool `yaml:"scatter"`
	spatial.Tuning `yaml:",inline"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	Dark             bool   `yaml:"dark"`
	ToastSeconds     int    `yaml:"toast_seconds,omitempty"`
	DefaultColorMode string `yaml:"default_color_mode,omitempty"` // none, hotspot, complexity, folder
}

// ProviderConfig points at the analysis backend.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Config is the top-level configuration for depcity.
type Config struct {
	Repos    []Repo         `yaml:"repos,omitempty"`
	Layout   LayoutConfig   `yaml:"layout,omitempty"`
	Spatial  SpatialConfig  `yaml:"spatial"`
	UI       UIConfig       `yaml:"ui,omitempty"`
	Provider ProviderConfig `yaml:"provider,omitempty"`
	Database string         `yaml:"database,omitempty"` // snapshot cache path
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	lo := layout.DefaultOptions()
	return Config{
		Layout: LayoutConfig{
			Columns:    lo.Columns,
			NodeWidth:  lo.NodeWidth,
			NodeHeight: lo.NodeHeight,
			RankSep:    lo.RankSep,
			NodeSep:    lo.NodeSep,
			GridMargin: lo.GridMargin,
			GridGap:    lo.GridGapX,
		},
		Spatial: SpatialConfig{Tuning: spatial.DefaultTuning()},
		UI: UIConfig{
			Dark:         true,
			ToastSeconds: 3,
		},
		Provider: ProviderConfig{
			BaseURL:        "http://127.0.0.1:8000",
			TimeoutSeconds: 120,
		},
	}
}

// LayoutOptions converts the layout section into layout options.
func (c Config) LayoutOptions() layout.Options {
	o := layout.DefaultOptions()
	l := c.Layout
	if l.Columns > 0 {
		o.Columns = l.Columns
	}
	if l.NodeWidth > 0 {
		o.NodeWidth = l.NodeWidth
	}
	if l.NodeHeight > 0 {
		o.NodeHeight = l.NodeHeight
	}
	if l.RankSep > 0 {
		o.RankSep = l.RankSep
	}
	if l.NodeSep > 0 {
		o.NodeSep = l.NodeSep
	}
	if l.GridMargin > 0 {
		o.GridMargin = l.GridMargin
	}
	if l.GridGap > 0 {
		o.GridGapX, o.GridGapY = l.GridGap, l.GridGap
	}
	return o
}

// ToastDuration is how long status messages stay visible.
func (c Config) ToastDuration() time.Duration {
	if c.UI.ToastSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.UI.ToastSeconds) * time.Second
}

// ProviderTimeout bounds a single backend request.
func (c Config) ProviderTimeout() time.Duration {
	if c.Provider.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// ConfigDir returns the XDG config directory for depcity.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for depcity.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DatabasePath returns the snapshot cache location: the configured path
// (with ~ expanded) or snapshots.db in the data directory.
func (c Config) DatabasePath() string {
	if c.Database != "" {
		return expandHome(c.Database)
	}
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "snapshots.db")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Provider.BaseURL = strings.TrimRight(cfg.Provider.BaseURL, "/")
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindRepo returns the repo whose name or URL matches, or nil.
func (c Config) FindRepo(nameOrURL string) *Repo {
	for i := range c.Repos {
		if strings.EqualFold(c.Repos[i].Name, nameOrURL) || c.Repos[i].URL == nameOrURL {
			return &c.Repos[i]
		}
	}
	return nil
}

// RememberRepo moves url to the front of the repo list, adding it if new.
// The list keeps at most limit entries.
func (c *Config) RememberRepo(url string, limit int) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	entry := Repo{Name: RepoName(url), URL: url}
	out := []Repo{entry}
	for _, r := range c.Repos {
		if r.URL != url {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	c.Repos = out
}

// RepoName derives a short name ("owner/repo") from a repository URL.
func RepoName(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return trimmed
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
