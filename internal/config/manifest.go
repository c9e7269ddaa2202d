package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danmuck/edgexfer/internal/protocol/schema"
)

// Manifest lists the files xfersend frames in one session, in order.
type Manifest struct {
	Files []FileEntry `toml:"files"`
}

// FileEntry is one source. Stream entries are sent as indefinite files read
// until EOF; the rest are sent as definite files sized from disk.
type FileEntry struct {
	Name   string `toml:"name"`
	Path   string `toml:"path"`
	Stream bool   `toml:"stream"`
}

// LoadManifest reads and validates a manifest. Relative paths resolve against
// the manifest's directory and empty names default to the path's base name.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	if err := loadToml(path, &m); err != nil {
		return Manifest{}, err
	}
	base := filepath.Dir(path)
	for i := range m.Files {
		e := &m.Files[i]
		e.Path = strings.TrimSpace(e.Path)
		if e.Path != "" && e.Path != "-" && !filepath.IsAbs(e.Path) {
			e.Path = filepath.Join(base, e.Path)
		}
	}
	m = m.Normalize()
	if err := ValidateManifest(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Normalize fills default names.
func (m Manifest) Normalize() Manifest {
	out := Manifest{Files: make([]FileEntry, len(m.Files))}
	for i, e := range m.Files {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" && e.Path != "-" {
			e.Name = filepath.Base(e.Path)
		}
		out.Files[i] = e
	}
	return out
}

func ValidateManifest(m Manifest) error {
	if len(m.Files) == 0 {
		return fmt.Errorf("%w: manifest lists no files", ErrInvalidConfig)
	}
	seen := make(map[string]int, len(m.Files))
	for i, e := range m.Files {
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("%w: files[%d] missing path", ErrInvalidConfig, i)
		}
		if e.Path == "-" && !e.Stream {
			return fmt.Errorf("%w: files[%d] stdin source must set stream = true", ErrInvalidConfig, i)
		}
		if e.Name == "" {
			return fmt.Errorf("%w: files[%d] missing name", ErrInvalidConfig, i)
		}
		if err := schema.ValidateName(e.Name); err != nil {
			return fmt.Errorf("%w: files[%d]: %v", ErrInvalidConfig, i, err)
		}
		if j, dup := seen[e.Name]; dup {
			return fmt.Errorf("%w: files[%d] name %q already used by files[%d]", ErrInvalidConfig, i, e.Name, j)
		}
		seen[e.Name] = i
	}
	return nil
}
