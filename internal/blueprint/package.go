package blueprint

import (
	"fmt"
	"strings"
)

// Package is one entry of an INSTALL_PACKAGES action.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

func (p Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

// ParsePackage splits a "name@version" specifier. Scoped names such as
// "@scope/pkg@^1" keep their leading '@'.
func ParsePackage(spec string) (Package, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Package{}, fmt.Errorf("empty package specifier")
	}
	search := spec
	offset := 0
	if strings.HasPrefix(spec, "@") {
		search = spec[1:]
		offset = 1
	}
	idx := strings.LastIndex(search, "@")
	if idx < 0 {
		return Package{Name: spec}, nil
	}
	name := spec[:idx+offset]
	version := spec[idx+offset+1:]
	if name == "" || name == "@" {
		return Package{}, fmt.Errorf("invalid package specifier %q", spec)
	}
	return Package{Name: name, Version: version}, nil
}

// ParsePackages parses every specifier of an INSTALL_PACKAGES action.
func ParsePackages(specs []string) ([]Package, error) {
	out := make([]Package, 0, len(specs))
	for _, spec := range specs {
		pkg, err := ParsePackage(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	return out, nil
}
