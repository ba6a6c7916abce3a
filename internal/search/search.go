// Package search defines the narrow contract the engine hands finished
// manifests to. Indexing itself is an external collaborator; the engine
// only supplies searchableContent verbatim.
package search

import (
	"context"

	"github.com/kelvinpraises/vidrune/internal/manifest"
)

// Indexer consumes a finished manifest for search indexing.
type Indexer interface {
	IndexManifest(ctx context.Context, m manifest.Manifest) error
}

// NoopIndexer ignores manifests. Used when no indexer is attached.
type NoopIndexer struct{}

func (NoopIndexer) IndexManifest(context.Context, manifest.Manifest) error { return nil }
