// Command render resolves one content piece's template and prints the
// result. Useful for checking what a stage will actually see before running
// a full pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"goldpipe/pkg/core/content"
	"goldpipe/pkg/core/template"
)

type varFlags map[string]string

func (v varFlags) String() string { return "" }

func (v varFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected NAME=value, got %q", s)
	}
	v[name] = value
	return nil
}

func main() {
	contentDir := flag.String("content", "content", "directory of content piece JSON files")
	id := flag.String("id", "", "content piece ID to resolve")
	strict := flag.Bool("strict", false, "fail on unresolved placeholders")
	vars := varFlags{}
	flag.Var(vars, "var", "runtime variable as NAME=value (repeatable)")
	flag.Parse()

	if *id == "" {
		log.Fatal("Error: -id is required.")
	}

	ctx := context.Background()
	cs := content.NewMemoryStore()
	if _, err := content.LoadFromDirectory(ctx, cs, *contentDir); err != nil {
		log.Fatalf("failed to load content pieces: %v", err)
	}

	resolver := template.NewResolver(cs, template.Options{Strict: *strict})
	res, err := resolver.ResolveID(ctx, *id, vars)
	if err != nil {
		log.Fatalf("resolution failed: %v", err)
	}

	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	fmt.Println(res.Text)
}
