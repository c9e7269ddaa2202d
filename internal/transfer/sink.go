package transfer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

var (
	ErrEmptyName   = errors.New("transfer: empty destination name")
	ErrPathEscapes = errors.New("transfer: destination escapes output dir")
)

// Sink maps wire names to destination paths and performs the file writes.
// Each operation opens and closes its file.
type Sink struct {
	Root string
}

// Resolve returns the destination path for a wire name. With no Root the name
// is used as given.
func (s Sink) Resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrEmptyName
	}
	if s.Root == "" {
		return name, nil
	}
	root := filepath.Clean(s.Root)
	path := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapes, name)
	}
	return path, nil
}

// Create truncates or creates path so an append stream starts at length zero.
func (s Sink) Create(path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (s Sink) Append(path string, p []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(p); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Persist writes a fully assembled definite file.
func (s Sink) Persist(path string, data []byte) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Digest returns the hex blake3 sum of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hexSum(h *blake3.Hasher) string {
	return hex.EncodeToString(h.Sum(nil))
}
