package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/loader"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// ErrSnapshotNotFound is returned when the store holds no snapshot for a repo.
var ErrSnapshotNotFound = errors.New("snapshot not found")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	repo_url    TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	node_count  INTEGER NOT NULL,
	edge_count  INTEGER NOT NULL,
	analyzed_at INTEGER NOT NULL
)`

// Entry describes one cached snapshot without decoding it.
type Entry struct {
	RepoURL    string    `json:"repo_url"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// SnapshotStore caches analysed snapshots in a SQLite database, keyed by
// repository URL.
type SnapshotStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSnapshotStore opens (creating if needed) the database at path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("datasource: %s: %v", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SnapshotStore{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SnapshotStore) Path() string { return s.path }

// Close closes the database connection
func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores snap under its RepoURL, replacing any previous analysis.
func (s *SnapshotStore) Put(ctx context.Context, snap model.Snapshot) error {
	if snap.RepoURL == "" {
		return fmt.Errorf("snapshot has no repo url")
	}
	payload, err := loader.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (repo_url, payload, node_count, edge_count, analyzed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo_url) DO UPDATE SET
			payload = excluded.payload,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			analyzed_at = excluded.analyzed_at`,
		snap.RepoURL, payload, len(snap.Nodes), len(snap.Edges), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("storing snapshot for %s: %w", snap.RepoURL, err)
	}
	debug.Log("datasource: cached %s (%d nodes)", snap.RepoURL, len(snap.Nodes))
	return nil
}

// Get returns the cached snapshot for repoURL and when it was analysed.
func (s *SnapshotStore) Get(ctx context.Context, repoURL string) (model.Snapshot, time.Time, error) {
	var payload []byte
	var analyzedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, analyzed_at FROM snapshots WHERE repo_url = ?`, repoURL,
	).Scan(&payload, &analyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, time.Time{}, fmt.Errorf("%s: %w", repoURL, ErrSnapshotNotFound)
	}
	if err != nil {
		return model.Snapshot{}, time.Time{}, fmt.Errorf("reading snapshot for %s: %w", repoURL, err)
	}
	snap, err := loader.Decode(payload, loader.ParseOptions{
		RepoURL:        repoURL,
		WarningHandler: func(msg string) { debug.Log("datasource: %s: %s", repoURL, msg) },
	})
	if err != nil {
		return model.Snapshot{}, time.Time{}, err
	}
	return snap, time.Unix(0, analyzedAt), nil
}

// List returns every cached snapshot, most recently analysed first.
func (s *SnapshotStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT repo_url, node_count, edge_count, analyzed_at FROM snapshots ORDER BY analyzed_at DESC, repo_url`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var analyzedAt int64
		if err := rows.Scan(&e.RepoURL, &e.NodeCount, &e.EdgeCount, &analyzedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		e.AnalyzedAt = time.Unix(0, analyzedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete forgets the snapshot for repoURL. Deleting a missing entry is not
// an error.
func (s *SnapshotStore) Delete(ctx context.Context, repoURL string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE repo_url = ?`, repoURL); err != nil {
		return fmt.Errorf("deleting snapshot for %s: %w", repoURL, err)
	}
	return nil
}
