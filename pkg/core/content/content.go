// Package content stores the named, typed text pieces that every pipeline
// stage is built from: instructions, evaluation criteria, reusable template
// fragments and input documents. Pieces link to each other through their
// variable mappings, forming a directed graph that the template resolver
// walks at run time.
package content

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies what role a content piece plays in the pipeline.
type Kind string

const (
	KindGeneration   Kind = "generation-instructions"
	KindSingleEval   Kind = "single-eval-instructions"
	KindPairwiseEval Kind = "pairwise-eval-instructions"
	KindCriteria     Kind = "eval-criteria"
	KindCombine      Kind = "combine-instructions"
	KindFragment     Kind = "template-fragment"
	KindDocument     Kind = "input-document"
)

// RuntimeMarker in a variable mapping means the value is supplied by the
// caller at resolution time instead of another content piece.
const RuntimeMarker = ""

// Content is one reusable unit of text with optional variable substitutions.
type Content struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        Kind              `json:"kind"`
	Body        string            `json:"body"`
	Vars        map[string]string `json:"vars,omitempty"` // var name -> content ID, or RuntimeMarker
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Deleted     bool              `json:"deleted,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
}

// Store is the read/write interface over the content library. The engine
// only reads; writes come from the editing collaborator.
type Store interface {
	Get(ctx context.Context, id string) (*Content, error)
	List(ctx context.Context, kind Kind) ([]*Content, error)
	Put(ctx context.Context, c *Content) error
	Delete(ctx context.Context, id string) error
}

// NotFoundError reports a missing or soft-deleted content piece.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content '%s' not found", e.ID)
}

// CycleError reports a variable mapping that transitively references the
// piece it belongs to. Path lists the content IDs along the offending walk,
// ending at the repeated ID.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("content reference cycle: %v", e.Path)
}

// ValidKind reports whether k is one of the recognized content kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindGeneration, KindSingleEval, KindPairwiseEval, KindCriteria,
		KindCombine, KindFragment, KindDocument:
		return true
	}
	return false
}

// checkAcyclic walks the static variable mappings reachable from c and fails
// if the walk re-enters c or any piece already on the current path. The
// candidate piece is checked as it would exist after the write, so a Put
// that introduces a cycle is rejected before it lands.
func checkAcyclic(ctx context.Context, s Store, c *Content) error {
	visiting := map[string]bool{}
	var walk func(id string, vars map[string]string, path []string) error
	walk = func(id string, vars map[string]string, path []string) error {
		if visiting[id] {
			return &CycleError{Path: append(path, id)}
		}
		visiting[id] = true
		defer delete(visiting, id)
		path = append(path, id)
		for _, target := range vars {
			if target == RuntimeMarker {
				continue
			}
			var next *Content
			if target == c.ID {
				next = c
			} else {
				var err error
				next, err = s.Get(ctx, target)
				if err != nil {
					// Dangling references are caught at preset validation,
					// not here; a missing link cannot form a cycle.
					continue
				}
			}
			if err := walk(next.ID, next.Vars, path); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(c.ID, c.Vars, nil)
}
