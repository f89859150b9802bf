package content

import (
	"errors"
	"io/fs"
	"os"
	"sort"
)

// Source returns the file system records are loaded from.
// An empty dir means the embedded seed. With withSeed the seed records are
// also served, and a file of dir replaces the seed file of the same name.
func Source(dir string, withSeed bool) fs.FS {
	if dir == "" {
		return SeedFS()
	}
	if !withSeed {
		return os.DirFS(dir)
	}
	return overlayFS{SeedFS(), os.DirFS(dir)}
}

// overlayFS serves the union of its layers; later layers win on name clashes
type overlayFS []fs.FS

func (o overlayFS) Open(name string) (fs.File, error) {
	var firstErr error
	for i := len(o) - 1; i >= 0; i-- {
		f, err := o[i].Open(name)
		if err == nil {
			return f, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (o overlayFS) ReadDir(name string) ([]fs.DirEntry, error) {
	byName := make(map[string]fs.DirEntry)
	found := false
	for _, layer := range o {
		entries, err := fs.ReadDir(layer, name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		found = true
		for _, e := range entries {
			byName[e.Name()] = e
		}
	}
	if !found {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	out := make([]fs.DirEntry, 0, len(byName))
	for _, e := range byName {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}
