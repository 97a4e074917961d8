package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/loader"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// Load discovers every source, validates them, selects the freshest valid
// one and loads it. A cached analysis wins over a file of the same age.
func Load(ctx context.Context, opts DiscoveryOptions) (model.Snapshot, DataSource, error) {
	opts.ValidateAfterDiscovery = true
	opts.IncludeInvalid = false

	sources, err := DiscoverSources(ctx, opts)
	if err != nil {
		return model.Snapshot{}, DataSource{}, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return model.Snapshot{}, DataSource{}, err
	}
	debug.Log("datasource: selected %s", best)

	snap, err := LoadFromSource(ctx, best)
	if err != nil {
		return model.Snapshot{}, best, err
	}
	return snap, best, nil
}

// LoadFromSource loads the snapshot from a specific DataSource, dispatching
// on its type.
func LoadFromSource(ctx context.Context, source DataSource) (model.Snapshot, error) {
	warn := func(msg string) { debug.Log("datasource: %s: %s", source.Path, msg) }

	switch source.Type {
	case SourceTypeSQLite:
		store, err := OpenSnapshotStore(source.Path)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer store.Close()
		snap, _, err := store.Get(ctx, source.RepoURL)
		return snap, err

	case SourceTypeFile:
		return loader.LoadFile(source.Path, loader.ParseOptions{WarningHandler: warn})

	default:
		return model.Snapshot{}, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
