package locator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

// TemplateAsset is one file below a module's templates directory.
type TemplateAsset struct {
	// Path is relative to the templates directory, slash separated. It is
	// the value blueprints use in their `template` field.
	Path string `json:"path"`

	// AbsPath is the location on disk.
	AbsPath string `json:"-"`

	MIME   string `json:"mime"`
	Binary bool   `json:"binary"`
	Size   int64  `json:"size"`
}

// TemplatePattern selects every template asset.
const TemplatePattern = "**"

// CollectTemplates globs the module's templates directory. A module without
// one yields an empty set.
func (l *Locator) CollectTemplates(ctx context.Context, moduleID string) ([]TemplateAsset, error) {
	l.mu.Lock()
	if assets, ok := l.templates[moduleID]; ok {
		l.mu.Unlock()
		return assets, nil
	}
	l.mu.Unlock()

	ref, err := l.Resolve(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	assets, err := l.globTemplates(ctx, ref.TemplateRoot)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", moduleID, err)
	}

	l.mu.Lock()
	l.templates[moduleID] = assets
	l.mu.Unlock()
	return assets, nil
}

func (l *Locator) globTemplates(ctx context.Context, root string) ([]TemplateAsset, error) {
	isDir, err := l.fs.IsDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat templates directory: %w", err)
	}
	if !isDir {
		return []TemplateAsset{}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), TemplatePattern)
	if err != nil {
		return nil, fmt.Errorf("glob failed: %w", err)
	}

	assets := make([]TemplateAsset, 0, len(matches))
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		abs := filepath.Join(root, filepath.FromSlash(match))
		info, err := l.fs.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat template %s: %w", match, err)
		}
		if info.IsDir() {
			continue
		}
		asset, err := describeAsset(match, abs, info)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].Path < assets[j].Path })
	return assets, nil
}

func describeAsset(rel, abs string, info fs.FileInfo) (TemplateAsset, error) {
	mtype, err := mimetype.DetectFile(abs)
	if err != nil {
		return TemplateAsset{}, fmt.Errorf("mime detection failed for %s: %w", rel, err)
	}
	return TemplateAsset{
		Path:    rel,
		AbsPath: abs,
		MIME:    mtype.String(),
		Binary:  !isText(mtype),
		Size:    info.Size(),
	}, nil
}

// isText walks the MIME hierarchy looking for a textual ancestor.
func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") || m.Is("application/json") {
			return true
		}
	}
	return false
}

// FindTemplate returns the asset with the given relative path.
func FindTemplate(assets []TemplateAsset, path string) (TemplateAsset, bool) {
	idx := sort.Search(len(assets), func(i int) bool { return assets[i].Path >= path })
	if idx < len(assets) && assets[idx].Path == path {
		return assets[idx], true
	}
	return TemplateAsset{}, false
}
