// Package datasource discovers, validates and selects the snapshot to show:
// snapshot files on disk and analyses cached in the SQLite snapshot store.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/depcity/pkg/loader"
)

// ErrNoSource is returned when discovery finds nothing valid to load.
var ErrNoSource = errors.New("no valid snapshot source")

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is an analysis cached in the snapshot store
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeFile is a snapshot JSON file
	SourceTypeFile SourceType = "file"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityFile   = 50
)

// DataSource represents a potential source of snapshot data
type DataSource struct {
	Type SourceType `json:"type"`
	// Path is the file or database path
	Path string `json:"path"`
	// RepoURL is the cache key for SQLite sources
	RepoURL  string    `json:"repo_url,omitempty"`
	Priority int       `json:"priority"`
	ModTime  time.Time `json:"mod_time"`
	Valid    bool      `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	NodeCount       int    `json:"node_count"`
	Size            int64  `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, nodes=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.NodeCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// Dir is searched for snapshot files (optional, see loader.SnapshotDir)
	Dir string
	// DBPath is the snapshot store; RepoURL selects an entry in it
	DBPath  string
	RepoURL string
	// ValidateAfterDiscovery decodes each source in parallel
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives progress messages
	Logger func(msg string)
}

// DiscoverSources finds all potential snapshot sources, freshest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	var sources []DataSource

	if opts.DBPath != "" && opts.RepoURL != "" {
		src, err := discoverSQLiteSource(ctx, opts.DBPath, opts.RepoURL)
		if err != nil {
			opts.Logger(fmt.Sprintf("SQLite discovery warning: %v", err))
		} else {
			sources = append(sources, src)
		}
	}

	dir, err := loader.SnapshotDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	files, err := discoverFileSources(dir)
	if err != nil {
		opts.Logger(fmt.Sprintf("File discovery warning: %v", err))
	}
	sources = append(sources, files...)

	if opts.ValidateAfterDiscovery {
		if err := ValidateSources(ctx, sources); err != nil {
			return nil, err
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				} else {
					opts.Logger(fmt.Sprintf("Validation failed for %s: %s", s.Path, s.ValidationError))
				}
			}
			sources = valid
		}
	}

	sortSources(sources)
	opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	return sources, nil
}

func sortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}

// discoverSQLiteSource looks up repoURL in the snapshot store.
func discoverSQLiteSource(ctx context.Context, dbPath, repoURL string) (DataSource, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return DataSource{}, err
	}
	store, err := OpenSnapshotStore(dbPath)
	if err != nil {
		return DataSource{}, err
	}
	defer store.Close()

	entries, err := store.List(ctx)
	if err != nil {
		return DataSource{}, err
	}
	for _, e := range entries {
		if e.RepoURL == repoURL {
			return DataSource{
				Type:      SourceTypeSQLite,
				Path:      dbPath,
				RepoURL:   repoURL,
				Priority:  PrioritySQLite,
				ModTime:   e.AnalyzedAt,
				NodeCount: e.NodeCount,
				Size:      info.Size(),
			}, nil
		}
	}
	return DataSource{}, fmt.Errorf("%s: %w", repoURL, ErrSnapshotNotFound)
}

// discoverFileSources finds snapshot JSON files in dir.
func discoverFileSources(dir string) ([]DataSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sources = append(sources, DataSource{
			Type:     SourceTypeFile,
			Path:     filepath.Join(dir, name),
			Priority: PriorityFile,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
	}
	return sources, nil
}

// ValidateSources decodes every source concurrently and records the result
// on it. Individual failures mark the source invalid; only context
// cancellation is returned.
func ValidateSources(ctx context.Context, sources []DataSource) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ValidateSource(ctx, &sources[i])
			return nil
		})
	}
	return g.Wait()
}

// ValidateSource loads src and records whether it holds a usable snapshot.
func ValidateSource(ctx context.Context, src *DataSource) {
	snap, err := LoadFromSource(ctx, *src)
	switch {
	case err != nil:
		src.Valid = false
		src.ValidationError = err.Error()
	case snap.IsEmpty():
		src.Valid = false
		src.ValidationError = "snapshot has no nodes"
	default:
		src.Valid = true
		src.ValidationError = ""
		src.NodeCount = len(snap.Nodes)
	}
}

// SelectBestSource returns the freshest valid source, preferring higher
// priority on equal modification times.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	candidates := make([]DataSource, 0, len(sources))
	for _, s := range sources {
		if s.Valid {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return DataSource{}, ErrNoSource
	}
	sortSources(candidates)
	return candidates[0], nil
}
