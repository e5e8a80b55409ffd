// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const templateExt = ".html"

var (
	//go:embed templates/*.html
	bundledTemplates embed.FS

	// ErrTemplateNotFound is returned when the store has no template with the requested name.
	ErrTemplateNotFound = errors.New("template not found")
)

// TemplateStore provides named template source text.
type TemplateStore interface {
	Load(name string) (string, error)
}

// FSStore reads "<name>.html" files from a file system.
type FSStore struct {
	fsys fs.FS
}

// NewEmbedStore returns a store backed by the templates compiled into the binary.
func NewEmbedStore() *FSStore {
	sub, err := fs.Sub(bundledTemplates, "templates")
	if err != nil {
		// the embed directive guarantees the directory exists
		panic(err)
	}
	return NewFSStore(sub)
}

// NewFSStore returns a store reading templates from fsys.
func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{fsys: fsys}
}

func (s *FSStore) Load(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	raw, err := fs.ReadFile(s.fsys, name+templateExt)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("read template %q: %w", name, err)
	}
	return string(raw), nil
}

// Names lists the templates available in the store.
func (s *FSStore) Names() ([]string, error) {
	matches, err := fs.Glob(s.fsys, "*"+templateExt)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), templateExt))
	}
	sort.Strings(names)
	return names, nil
}
