// Package sink delivers finished gold outputs to their configured
// destination.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"goldpipe/pkg/core/preset"
	"goldpipe/pkg/core/utils"
)

// Sink writes one gold output per document.
type Sink interface {
	Write(ctx context.Context, desc preset.DestDescriptor, documentID, gold string) error
}

// DirSink writes gold outputs as markdown files under the destination path.
type DirSink struct{}

func (DirSink) Write(_ context.Context, desc preset.DestDescriptor, documentID, gold string) error {
	if desc.Path == "" {
		return fmt.Errorf("directory destination requires a path")
	}
	if err := os.MkdirAll(desc.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out := filepath.Join(desc.Path, documentID+".md")
	if err := os.WriteFile(out, []byte(utils.CleanMarkdown(gold)+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write gold output: %w", err)
	}
	return nil
}

// Dispatcher routes a write to the sink matching the destination kind.
type Dispatcher struct {
	Dir Sink
	DB  Sink
}

// NewDispatcher builds a dispatcher with the directory sink always present
// and an optional database sink.
func NewDispatcher(db Sink) *Dispatcher {
	return &Dispatcher{Dir: DirSink{}, DB: db}
}

func (d *Dispatcher) Write(ctx context.Context, desc preset.DestDescriptor, documentID, gold string) error {
	switch desc.Kind {
	case "directory":
		return d.Dir.Write(ctx, desc, documentID, gold)
	case "database":
		if d.DB == nil {
			return fmt.Errorf("database destination configured but no database sink available")
		}
		return d.DB.Write(ctx, desc, documentID, gold)
	}
	return fmt.Errorf("unknown output destination kind '%s'", desc.Kind)
}
