// Package catalog enumerates the backing tracks on local storage and opens
// them as independent handles.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Library is the ordered set of tracks the engine can select from.
type Library interface {
	Len() int
	ID(i int) string
	Label(i int) string
	Open(id string) (io.ReadSeekCloser, error)
}

// Catalog is a directory of fixed-format PCM assets, ordered by file name.
type Catalog struct {
	dir string
	ext string
	ids []string
}

// Scan lists the regular files in dir whose extension matches ext
// (case-insensitive). An empty result is ErrNoAssets.
func Scan(dir, ext string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var ids []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		ids = append(ids, name)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("scan %s: %w", dir, ErrNoAssets)
	}
	sort.Strings(ids)

	return &Catalog{dir: dir, ext: ext, ids: ids}, nil
}

// Dir returns the scanned directory.
func (c *Catalog) Dir() string { return c.dir }

// Len returns the number of tracks.
func (c *Catalog) Len() int { return len(c.ids) }

// ID returns the asset id (file name) at index i.
func (c *Catalog) ID(i int) string { return c.ids[i] }

// IDs returns a copy of all asset ids in order.
func (c *Catalog) IDs() []string { return append([]string(nil), c.ids...) }

// Label returns a display name for track i: the file name without extension.
func (c *Catalog) Label(i int) string {
	return strings.TrimSuffix(c.ids[i], filepath.Ext(c.ids[i]))
}

// Open returns a fresh handle to id. Ids that escape the directory are
// reported as not found.
func (c *Catalog) Open(id string) (io.ReadSeekCloser, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	f, err := os.Open(filepath.Join(c.dir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return f, nil
}

var _ Library = (*Catalog)(nil)
