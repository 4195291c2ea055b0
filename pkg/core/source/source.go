// Package source abstracts where input documents come from: the content
// store, a local directory, or fetched over HTTP.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"goldpipe/pkg/core/content"
	"goldpipe/pkg/core/preset"
	"goldpipe/pkg/core/stage"
)

// Source fetches the documents a descriptor points at.
type Source interface {
	Fetch(ctx context.Context, desc preset.SourceDescriptor) ([]stage.Document, error)
}

// Resolver dispatches to the concrete source for a descriptor kind.
type Resolver struct {
	store content.Store
	web   *WebSource
}

// NewResolver creates a source resolver over the given content store.
func NewResolver(store content.Store) *Resolver {
	return &Resolver{store: store, web: NewWebSource()}
}

func (r *Resolver) Fetch(ctx context.Context, desc preset.SourceDescriptor) ([]stage.Document, error) {
	switch desc.Kind {
	case "content-store":
		return fetchFromStore(ctx, r.store, desc.IDs)
	case "directory":
		return fetchFromDirectory(desc.Path)
	case "web":
		return r.web.Fetch(ctx, desc)
	}
	return nil, fmt.Errorf("unknown input source kind '%s'", desc.Kind)
}

func fetchFromStore(ctx context.Context, store content.Store, ids []string) ([]stage.Document, error) {
	var docs []stage.Document
	if len(ids) == 0 {
		// No explicit list: take every input-document piece.
		pieces, err := store.List(ctx, content.KindDocument)
		if err != nil {
			return nil, err
		}
		for _, piece := range pieces {
			docs = append(docs, stage.Document{ID: piece.ID, Text: piece.Body})
		}
		return docs, nil
	}
	for _, id := range ids {
		piece, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if piece.Kind != content.KindDocument {
			return nil, fmt.Errorf("content '%s' has kind '%s', expected '%s'",
				id, piece.Kind, content.KindDocument)
		}
		docs = append(docs, stage.Document{ID: piece.ID, Text: piece.Body})
	}
	return docs, nil
}

func fetchFromDirectory(dir string) ([]stage.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read document directory: %w", err)
	}
	var docs []stage.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", e.Name(), err)
		}
		docs = append(docs, stage.Document{
			ID:   strings.TrimSuffix(e.Name(), ext),
			Text: string(data),
		})
	}
	return docs, nil
}
