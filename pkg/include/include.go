// Package include defines the loader capability the preprocessor uses
// to resolve #include directives. The engine never touches the file
// system itself; callers inject a Loader.
package include

import (
	"fmt"
	"os"
	"path/filepath"
)

// Kind distinguishes the two include spellings
type Kind int

const (
	// KindLocal is #include "file.h"
	KindLocal Kind = iota
	// KindSystem is #include <file.h>
	KindSystem
)

// String returns a string representation of the include kind
func (k Kind) String() string {
	if k == KindSystem {
		return "system"
	}
	return "local"
}

// Context carries resolution context to the loader
type Context struct {
	// IncludingFile is the file containing the #include directive
	IncludingFile string
	// Stack is the chain of files currently being included, outermost
	// first, for diagnostics
	Stack []string
}

// Loader maps an include name to source text. Load returns the
// resolved name (used for cycle detection and #pragma once identity),
// the file contents, and an error when the name cannot be resolved.
type Loader interface {
	Load(name string, kind Kind, ctx *Context) (resolved string, text string, err error)
}

// ErrNotFound is wrapped by loaders when a name resolves to nothing
var ErrNotFound = fmt.Errorf("include not found")

// DirLoader resolves includes against the file system. Local includes
// are tried relative to the including file first, then the search
// directories; system includes skip the relative step.
type DirLoader struct {
	Dirs []string
}

// NewDirLoader creates a loader searching the given directories
func NewDirLoader(dirs ...string) *DirLoader {
	return &DirLoader{Dirs: dirs}
}

// Load implements Loader
func (d *DirLoader) Load(name string, kind Kind, ctx *Context) (string, string, error) {
	var candidates []string
	if kind == KindLocal && ctx != nil && ctx.IncludingFile != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(ctx.IncludingFile), name))
	}
	for _, dir := range d.Dirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return path, string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", "", fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return "", "", fmt.Errorf("%q (%s include): %w", name, kind, ErrNotFound)
}

// MapLoader resolves includes from an in-memory map, keyed by include
// name. Intended for tests and embedded use.
type MapLoader map[string]string

// Load implements Loader
func (m MapLoader) Load(name string, kind Kind, ctx *Context) (string, string, error) {
	text, ok := m[name]
	if !ok {
		return "", "", fmt.Errorf("%q (%s include): %w", name, kind, ErrNotFound)
	}
	return name, text, nil
}
