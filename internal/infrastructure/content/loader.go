package content

import (
	"bytes"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"

	"github.com/fichesante/backend/internal/domain/content"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// SeedFS returns the embedded seed content, rooted at its record files
func SeedFS() fs.FS {
	sub, err := fs.Sub(seedFS, "seed")
	if err != nil {
		// the embed pattern guarantees the directory exists
		panic(err)
	}
	return sub
}

// ErrInvalidRecord is returned when a record file cannot be used
var ErrInvalidRecord = errors.New("content: invalid record")

// LoadFS reads every *.yaml and *.yml file at the root of fsys as one record.
// Records without a content_version get one derived from their content.
func LoadFS(fsys fs.FS) ([]*content.Record, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list content directory: %w", err)
	}

	var records []*content.Record
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ext := path.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		rec, err := ParseRecord(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: id %q defined in both %s and %s", ErrInvalidRecord, rec.ID, prev, name)
		}
		seen[rec.ID] = name
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// ParseRecord decodes one YAML record
func ParseRecord(data []byte) (*content.Record, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rec content.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := validate(&rec); err != nil {
		return nil, err
	}
	if rec.ContentVersion == "" {
		version, err := DeriveVersion(&rec)
		if err != nil {
			return nil, err
		}
		rec.ContentVersion = version
	}
	return &rec, nil
}

// idPattern matches the slugs accepted on the HTTP surface
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func validate(rec *content.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if !idPattern.MatchString(rec.ID) {
		return fmt.Errorf("%w: id %q must be letters, digits, '-' or '_'", ErrInvalidRecord, rec.ID)
	}
	if rec.Title == "" {
		return fmt.Errorf("%w: %s: title is required", ErrInvalidRecord, rec.ID)
	}
	for i, r := range rec.Recommendations {
		if !r.Strength.IsValid() {
			return fmt.Errorf("%w: %s: recommendation %d has unknown strength %q", ErrInvalidRecord, rec.ID, i+1, r.Strength)
		}
	}
	return nil
}

// DeriveVersion returns a version string that changes whenever the
// record content changes. It hashes the canonical YAML form of the record
// with its version field cleared.
func DeriveVersion(rec *content.Record) (string, error) {
	c := rec.Clone()
	c.ContentVersion = ""
	canonical, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s for hashing: %w", rec.ID, err)
	}
	sum := blake3.Sum256(canonical)
	return "b3-" + hex.EncodeToString(sum[:6]), nil
}
