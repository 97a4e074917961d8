// Package provider talks to the collaborators that sit outside the view
// engine: the analysis backend that produces snapshots, the file content
// source behind the inspector and the code explanation service.
package provider

import (
	"context"
	"errors"

	"github.com/vanderheijden86/depcity/pkg/model"
)

// ExplainFallback is returned by Explain when the service cannot answer.
const ExplainFallback = "Failed to get explanation."

// DefaultBaseURL is the analysis backend address used when none is given.
const DefaultBaseURL = "http://127.0.0.1:8000"

var (
	// ErrEmptyRepoURL is returned when Analyze is called without a URL.
	ErrEmptyRepoURL = errors.New("repository url is empty")
	// ErrEmptyPath is returned when FileContent is called without a path.
	ErrEmptyPath = errors.New("file path is empty")
)

// AnalysisProvider produces a dependency snapshot for a repository.
type AnalysisProvider interface {
	Analyze(ctx context.Context, repoURL string) (model.Snapshot, error)
}

// ContentProvider returns a file's source text.
type ContentProvider interface {
	FileContent(ctx context.Context, path string) (string, error)
}

// ExplanationProvider explains a piece of code in markdown. It never fails:
// errors collapse into ExplainFallback.
type ExplanationProvider interface {
	Explain(ctx context.Context, code string) string
}
