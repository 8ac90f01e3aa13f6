// Package render defines the template rendering collaborator used when a
// merge needs the content behind a template reference.
//
// Placeholder expansion belongs to the executor; the Passthrough renderer
// only reads template assets verbatim so that structural merges can operate
// on them.
package render

import (
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/scaffold/internal/blueprint"
	"github.com/danieljhkim/scaffold/internal/fsops"
)

// Request identifies one template to render.
type Request struct {
	ModuleID string
	Template string
	Params   map[string]any
}

// Renderer turns a template reference into content.
type Renderer interface {
	Render(req Request) (string, error)
}

// Passthrough reads template assets from each module's template root.
type Passthrough struct {
	fs    fsops.FS
	roots map[string]string
}

// NewPassthrough creates a renderer over the given module template roots,
// keyed by module id.
func NewPassthrough(fs fsops.FS, roots map[string]string) *Passthrough {
	copied := make(map[string]string, len(roots))
	for id, root := range roots {
		copied[id] = root
	}
	return &Passthrough{fs: fs, roots: copied}
}

// Render returns the raw template content.
func (p *Passthrough) Render(req Request) (string, error) {
	root, ok := p.roots[req.ModuleID]
	if !ok || root == "" {
		return "", fmt.Errorf("module %s has no template directory", req.ModuleID)
	}
	rel, err := blueprint.NormalizePath(req.Template)
	if err != nil {
		return "", fmt.Errorf("template %q: %w", req.Template, err)
	}
	data, err := p.fs.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("failed to read template %s for module %s: %w", rel, req.ModuleID, err)
	}
	return string(data), nil
}

// Static renders from an in-memory table keyed by "<module>/<template>".
type Static map[string]string

// Render returns the registered content.
func (s Static) Render(req Request) (string, error) {
	content, ok := s[req.ModuleID+"/"+req.Template]
	if !ok {
		return "", fmt.Errorf("template %s not found for module %s", req.Template, req.ModuleID)
	}
	return content, nil
}
