package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFromDirectory loads all content pieces from a directory of JSON files
// into the given store.
// Expected structure:
//
//	baseDir/
//	  generation-instructions/
//	    draft.json
//	  eval-criteria/
//	    clarity.json
//	  template-fragment/
//	    persona.json
//
// The folder name supplies the kind when a file omits it, and the file path
// supplies the ID ("template-fragment/persona.json" -> "template-fragment.persona").
func LoadFromDirectory(ctx context.Context, store Store, baseDir string) (int, error) {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return 0, fmt.Errorf("content directory not found: %s", baseDir)
	}

	count := 0
	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var c Content
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if c.ID == "" {
			c.ID = generateIDFromPath(path, baseDir)
		}
		if c.Kind == "" {
			c.Kind = Kind(detectKind(path, baseDir))
		}
		if c.Name == "" {
			c.Name = c.ID
		}

		if err := store.Put(ctx, &c); err != nil {
			return fmt.Errorf("failed to register %s: %w", c.ID, err)
		}
		count++
		return nil
	})
	return count, err
}

// generateIDFromPath creates a content ID from the file path
// e.g., "template-fragment/persona.json" -> "template-fragment.persona"
func generateIDFromPath(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	relPath = strings.TrimSuffix(relPath, ".json")
	relPath = strings.ReplaceAll(relPath, string(filepath.Separator), ".")
	return relPath
}

// detectKind extracts the kind from the folder structure.
func detectKind(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	parts := strings.Split(relPath, string(filepath.Separator))
	if len(parts) > 1 {
		return parts[0]
	}
	return string(KindFragment)
}
