// Package template composes instruction text from linked content pieces.
// Placeholders of the form {{NAME}} are substituted depth-first: runtime
// values win over static links, static links recurse into the referenced
// piece, and cycles are rejected with the offending path.
package template

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"goldpipe/pkg/core/content"
)

// Placeholder names are upper-case by convention; anything else in braces is
// left untouched.
var placeholderPattern = regexp.MustCompile(`\{\{([A-Z0-9_]+)\}\}`)

// Options controls unresolved-placeholder handling.
type Options struct {
	// Strict makes an unmatched placeholder an error. The default leaves it
	// verbatim and records a warning on the result.
	Strict bool
}

// Result is the outcome of one resolution call.
type Result struct {
	Text     string
	Warnings []string
}

// CycleError reports that resolving a piece required resolving it again
// before completion.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("template cycle detected: %s", strings.Join(e.Path, " -> "))
}

// UnresolvedError reports placeholders with no runtime value and no static
// mapping, in strict mode.
type UnresolvedError struct {
	ContentID string
	Names     []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved variables in '%s': %s", e.ContentID, strings.Join(e.Names, ", "))
}

// Resolver substitutes placeholders in content bodies, reading linked pieces
// from the store. A Resolver is stateless between calls; the store is
// read-only during a single Resolve.
type Resolver struct {
	store content.Store
	opts  Options
}

// NewResolver creates a resolver over the given store.
func NewResolver(store content.Store, opts Options) *Resolver {
	return &Resolver{store: store, opts: opts}
}

// Resolve substitutes every placeholder in c's body. Runtime values are
// opaque terminal strings and are never re-resolved; static links recurse
// with the same runtime map threaded through. Resolution is deterministic:
// the same piece with the same runtime values always yields byte-identical
// output.
func (r *Resolver) Resolve(ctx context.Context, c *content.Content, runtimeVars map[string]string) (*Result, error) {
	res := &Result{}
	// Memo of fully-resolved pieces for this call. Shared fragments referenced
	// from several places resolve once. Safe because the runtime map is fixed
	// for the whole call.
	memo := map[string]string{}
	visiting := map[string]bool{}

	text, err := r.resolve(ctx, c, runtimeVars, visiting, memo, res, nil)
	if err != nil {
		return nil, err
	}
	res.Text = text
	return res, nil
}

// ResolveID is a convenience that loads the piece first.
func (r *Resolver) ResolveID(ctx context.Context, id string, runtimeVars map[string]string) (*Result, error) {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, c, runtimeVars)
}

func (r *Resolver) resolve(ctx context.Context, c *content.Content, runtimeVars map[string]string,
	visiting map[string]bool, memo map[string]string, res *Result, path []string) (string, error) {

	if visiting[c.ID] {
		return "", &CycleError{Path: append(path, c.ID)}
	}
	if cached, ok := memo[c.ID]; ok {
		return cached, nil
	}
	visiting[c.ID] = true
	defer delete(visiting, c.ID)
	path = append(path, c.ID)

	var missing []string
	var resolveErr error

	out := placeholderPattern.ReplaceAllStringFunc(c.Body, func(match string) string {
		if resolveErr != nil {
			return match
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]

		// Runtime values are terminal; substituted verbatim.
		if val, ok := runtimeVars[name]; ok {
			return val
		}

		if target, ok := c.Vars[name]; ok && target != content.RuntimeMarker {
			if cached, ok := memo[target]; ok {
				return cached
			}
			linked, err := r.store.Get(ctx, target)
			if err != nil {
				resolveErr = fmt.Errorf("variable %s of '%s' references %w", name, c.ID, err)
				return match
			}
			sub, err := r.resolve(ctx, linked, runtimeVars, visiting, memo, res, path)
			if err != nil {
				resolveErr = err
				return match
			}
			return sub
		}

		// No runtime value and no static link (or an explicit runtime marker
		// with no value supplied).
		missing = append(missing, name)
		return match
	})

	if resolveErr != nil {
		return "", resolveErr
	}
	if len(missing) > 0 {
		if r.opts.Strict {
			return "", &UnresolvedError{ContentID: c.ID, Names: missing}
		}
		for _, name := range missing {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("placeholder {{%s}} in '%s' left unresolved", name, c.ID))
		}
	}

	memo[c.ID] = out
	return out, nil
}
