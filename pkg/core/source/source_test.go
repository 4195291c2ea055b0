package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"goldpipe/pkg/core/content"
	"goldpipe/pkg/core/preset"
)

func TestFetchFromDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"alpha.txt":  "alpha body",
		"beta.md":    "beta body",
		"ignored.go": "not a document",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	r := NewResolver(content.NewMemoryStore())
	docs, err := r.Fetch(context.Background(), preset.SourceDescriptor{Kind: "directory", Path: dir})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	byID := map[string]string{}
	for _, d := range docs {
		byID[d.ID] = d.Text
	}
	if byID["alpha"] != "alpha body" || byID["beta"] != "beta body" {
		t.Errorf("documents = %v", byID)
	}
}

func TestFetchFromContentStore(t *testing.T) {
	ctx := context.Background()
	s := content.NewMemoryStore()
	s.Put(ctx, &content.Content{ID: "d1", Name: "d1", Kind: content.KindDocument, Body: "one"})
	s.Put(ctx, &content.Content{ID: "d2", Name: "d2", Kind: content.KindDocument, Body: "two"})
	s.Put(ctx, &content.Content{ID: "frag", Name: "frag", Kind: content.KindFragment, Body: "x"})

	r := NewResolver(s)

	docs, err := r.Fetch(ctx, preset.SourceDescriptor{Kind: "content-store"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("unlisted fetch returned %d documents, want 2 (fragments excluded)", len(docs))
	}

	docs, err = r.Fetch(ctx, preset.SourceDescriptor{Kind: "content-store", IDs: []string{"d1"}})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "one" {
		t.Errorf("explicit fetch = %v", docs)
	}

	if _, err := r.Fetch(ctx, preset.SourceDescriptor{Kind: "content-store", IDs: []string{"frag"}}); err == nil {
		t.Error("expected kind mismatch error for non-document piece")
	}
	if _, err := r.Fetch(ctx, preset.SourceDescriptor{Kind: "content-store", IDs: []string{"ghost"}}); err == nil {
		t.Error("expected error for missing piece")
	}
}

func TestFetchUnknownKind(t *testing.T) {
	r := NewResolver(content.NewMemoryStore())
	if _, err := r.Fetch(context.Background(), preset.SourceDescriptor{Kind: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown source kind")
	}
}
