package locator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// CatalogEntry is one module discovered on disk.
type CatalogEntry struct {
	ID          string      `json:"id"`
	RuntimeKind RuntimeKind `json:"runtime"`
	Location    string      `json:"location"`
}

var sourceBlueprintFiles = map[string]int{
	GoBlueprintFile:   0,
	YAMLBlueprintFile: 1,
	YMLBlueprintFile:  2,
}

// Catalog lists every module id with a blueprint under either root, sorted
// by id. The entry reflects what Resolve would pick.
func (l *Locator) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	found := make(map[string]CatalogEntry)
	rank := make(map[string]int)
	var mu sync.Mutex

	record := func(entry CatalogEntry, r int) {
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := found[entry.ID]; ok {
			if prev.RuntimeKind == RuntimeSource && entry.RuntimeKind == RuntimeCompiled {
				return
			}
			if prev.RuntimeKind == entry.RuntimeKind && rank[entry.ID] <= r {
				return
			}
		}
		found[entry.ID] = entry
		rank[entry.ID] = r
	}

	walk := func(root string, runtime RuntimeKind) error {
		if root == "" {
			return nil
		}
		isDir, err := l.fs.IsDir(root)
		if err != nil {
			return fmt.Errorf("failed to stat module root %s: %w", root, err)
		}
		if !isDir {
			return nil
		}

		conf := fastwalk.Config{Follow: false}
		return fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				return nil
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr != nil || rel == "." {
				return nil
			}
			depth := strings.Count(filepath.ToSlash(rel), "/")
			if d.IsDir() {
				if depth >= 1 {
					return filepath.SkipDir
				}
				return nil
			}
			if depth != 1 {
				return nil
			}

			id := filepath.Base(filepath.Dir(p))
			name := d.Name()
			switch runtime {
			case RuntimeSource:
				if r, ok := sourceBlueprintFiles[name]; ok {
					record(CatalogEntry{ID: id, RuntimeKind: runtime, Location: p}, r)
				}
			case RuntimeCompiled:
				if name == CompiledBlueprintFile {
					record(CatalogEntry{ID: id, RuntimeKind: runtime, Location: p}, 0)
				}
			}
			return nil
		})
	}

	if err := walk(l.sourceRoot, RuntimeSource); err != nil {
		return nil, err
	}
	if err := walk(l.compiledRoot, RuntimeCompiled); err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(found))
	for _, entry := range found {
		if l.fs.ValidateIdentifier(entry.ID) != nil {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// IDs returns the ids of the entries, in order.
func IDs(entries []CatalogEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
