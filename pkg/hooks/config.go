// Package hooks runs user commands around depcity exports.
//
// Hooks live in .depcity/hooks.yaml:
//
//	hooks:
//	  pre-export:
//	    - name: lint
//	      command: ./check-graph.sh
//	      timeout: 10s
//	  post-export:
//	    - command: cp "$DEPCITY_EXPORT_PATH" /srv/www/
//	      on_error: continue
//
// Pre-export hooks gate the export; post-export hooks see the written file.
package hooks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase is the point of an export a hook runs at.
type Phase string

const (
	PreExport  Phase = "pre-export"
	PostExport Phase = "post-export"
)

// On-error policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// DefaultTimeout applies to hooks without a timeout.
const DefaultTimeout = 30 * time.Second

// Hook is one configured command. Timeout accepts a duration ("5s") or
// bare seconds ("30").
type Hook struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Timeout time.Duration     `yaml:"-"`
	Env     map[string]string `yaml:"env"`
	OnError string            `yaml:"on_error"`
}

// UnmarshalYAML decodes a hook, parsing its timeout separately.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	type plain Hook
	if err := node.Decode((*plain)(h)); err != nil {
		return err
	}
	var t struct {
		Timeout string `yaml:"timeout"`
	}
	if err := node.Decode(&t); err != nil {
		return err
	}
	d, err := parseTimeout(t.Timeout)
	if err != nil {
		return err
	}
	h.Timeout = d
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid timeout %q: want a duration like 5s or seconds", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Config is the parsed hooks file.
type Config struct {
	PreExport  []Hook `yaml:"pre-export"`
	PostExport []Hook `yaml:"post-export"`

	// Warnings lists entries that were skipped or corrected while loading.
	Warnings []string `yaml:"-"`
}

// Empty reports whether no hook is configured.
func (c *Config) Empty() bool {
	return c == nil || len(c.PreExport)+len(c.PostExport) == 0
}

// Hooks returns the hooks of phase.
func (c *Config) Hooks(phase Phase) []Hook {
	if c == nil {
		return nil
	}
	switch phase {
	case PreExport:
		return c.PreExport
	case PostExport:
		return c.PostExport
	}
	return nil
}

// ConfigPath returns the hooks file of projectDir.
func ConfigPath(projectDir string) string {
	return filepath.Join(projectDir, ".depcity", "hooks.yaml")
}

// Load reads the hooks file of projectDir ("" is the working directory).
// A missing file yields an empty config.
func Load(projectDir string) (*Config, error) {
	path := ConfigPath(projectDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading hooks config: %w", err)
	}

	var file struct {
		Hooks Config `yaml:"hooks"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg := &file.Hooks
	cfg.PreExport = cfg.normalize(PreExport, cfg.PreExport)
	cfg.PostExport = cfg.normalize(PostExport, cfg.PostExport)
	return cfg, nil
}

// normalize fills in names, timeouts and on_error policies. Pre-export
// hooks fail the export by default, post-export hooks continue.
func (c *Config) normalize(phase Phase, hooks []Hook) []Hook {
	out := hooks[:0]
	for i, h := range hooks {
		n := i + 1
		if strings.TrimSpace(h.Command) == "" {
			c.Warnings = append(c.Warnings, fmt.Sprintf("%s hook %d has no command, skipped", phase, n))
			continue
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, n)
		}
		if h.Timeout == 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			h.OnError = OnErrorContinue
			if phase == PreExport {
				h.OnError = OnErrorFail
			}
		default:
			c.Warnings = append(c.Warnings, fmt.Sprintf("%s hook %q: unknown on_error %q, using %q", phase, h.Name, h.OnError, OnErrorFail))
			h.OnError = OnErrorFail
		}
		out = append(out, h)
	}
	return out
}

// ExportContext describes the export a hook runs around.
type ExportContext struct {
	ExportPath   string
	ExportFormat string // svg, png, json, dot, mermaid or city
	RepoURL      string
	FileCount    int
	Timestamp    time.Time
}

// Env returns the context as DEPCITY_* environment entries.
func (c ExportContext) Env() []string {
	return []string{
		"DEPCITY_EXPORT_PATH=" + c.ExportPath,
		"DEPCITY_EXPORT_FORMAT=" + c.ExportFormat,
		"DEPCITY_REPO_URL=" + c.RepoURL,
		"DEPCITY_FILE_COUNT=" + strconv.Itoa(c.FileCount),
		"DEPCITY_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}
