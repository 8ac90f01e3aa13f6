// Package fsops provides the filesystem access used by the locator and the
// build command.
//
// The planning engine itself never performs I/O on the generated project;
// only module discovery (reading blueprints, manifests and templates) and
// `scaffold build` (writing compiled blueprints) go through this package.
package fsops

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix marks in-flight AtomicWrite files; Copy never carries them over.
const tempPrefix = ".scaffold-tmp-"

// ErrInvalidIdentifier is returned for module ids that cannot name a
// directory under a module root.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// FS is the filesystem surface the locator and build command need.
type FS interface {
	// Stat returns file info, following symlinks.
	Stat(path string) (os.FileInfo, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Exists reports whether path exists.
	Exists(path string) (bool, error)

	// IsDir reports whether path exists and is a directory.
	IsDir(path string) (bool, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error

	// Copy copies a file or a template tree from src to dst.
	Copy(src, dst string) error

	// AtomicWrite replaces path with data so readers never see a partial
	// compiled blueprint.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// ValidateIdentifier checks that id can name a module directory.
	ValidateIdentifier(id string) error
}

// RealFS implements FS on the host filesystem.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

func (fs *RealFS) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (fs *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (fs *RealFS) Exists(path string) (bool, error) {
	info, err := statIfExists(path)
	return info != nil, err
}

func (fs *RealFS) IsDir(path string) (bool, error) {
	info, err := statIfExists(path)
	return info != nil && info.IsDir(), err
}

// statIfExists returns nil info and nil error for a missing path.
func statIfExists(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (fs *RealFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *RealFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Copy copies src to dst. Directories are copied recursively; symlinks,
// including symlinked directories, are followed so the compiled tree holds
// real files.
func (fs *RealFS) Copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}
	return copyTree(src, dst, make(map[string]bool))
}

// copyTree walks src, descending into symlinked directories. visited holds
// resolved directory paths already on the walk so link cycles terminate.
func copyTree(src, dst string, visited map[string]bool) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", src, err)
	}
	if visited[resolved] {
		return fmt.Errorf("symlink cycle at %s", src)
	}
	visited[resolved] = true
	defer delete(visited, resolved)

	return filepath.WalkDir(resolved, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		switch {
		case info.IsDir() && d.Type()&iofs.ModeSymlink != 0:
			return copyTree(path, target, visited)
		case info.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", rel, err)
			}
			return nil
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}

func (fs *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		committed = true
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	committed = true
	return nil
}

func (fs *RealFS) ValidateIdentifier(id string) error {
	return ValidateIdentifier(id)
}

// ValidateIdentifier rejects ids that are blank, contain a path separator,
// or start with a dot (traversal and hidden directories).
func ValidateIdentifier(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	case strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, filepath.Separator):
		return fmt.Errorf("%w %q: must not contain path separators", ErrInvalidIdentifier, id)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w %q: must not start with a dot", ErrInvalidIdentifier, id)
	}
	return nil
}
