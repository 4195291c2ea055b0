package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"goldpipe/pkg/core/preset"
)

func TestDirSinkWritesCleanMarkdown(t *testing.T) {
	dir := t.TempDir()
	desc := preset.DestDescriptor{Kind: "directory", Path: filepath.Join(dir, "out")}

	err := DirSink{}.Write(context.Background(), desc, "doc-1", "```markdown\n# Gold\n```")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(desc.Path, "doc-1.md"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "# Gold\n" {
		t.Errorf("output = %q", data)
	}
}

func TestDirSinkRequiresPath(t *testing.T) {
	err := DirSink{}.Write(context.Background(), preset.DestDescriptor{Kind: "directory"}, "d", "x")
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestDispatcherRouting(t *testing.T) {
	d := NewDispatcher(nil)

	err := d.Write(context.Background(), preset.DestDescriptor{Kind: "database"}, "d", "x")
	if err == nil {
		t.Error("expected error when database sink is absent")
	}

	err = d.Write(context.Background(), preset.DestDescriptor{Kind: "telegram"}, "d", "x")
	if err == nil {
		t.Error("expected error for unknown destination kind")
	}
}
