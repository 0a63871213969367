package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store is the on-disk avatar cache. Entries are PNG files named
// "{effect}_{identifier}.png" within a single directory, so the key
// encodes both the account and the transform applied, and a derived
// variant can never collide with the original it was produced from.
type Store struct {
	dir string
}

func NewStore(dir string) Store {
	return Store{dir: dir}
}

func (s Store) Dir() string {
	return s.dir
}

// PathFor maps an (identifier, effect) pair to its cache location. It
// is deterministic and performs no I/O; IdentifierOf inverts it.
func (s Store) PathFor(identifier string, effect int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%s.png", effect, identifier))
}

// IdentifierOf recovers the identifier from any path PathFor could have
// produced. This lets the effect processor derive a sibling cache key
// from an existing file without re-threading the original identifier.
func (s Store) IdentifierOf(path string) (string, error) {
	name, ok := strings.CutSuffix(filepath.Base(path), ".png")
	if !ok {
		return "", fmt.Errorf("not a cache entry path: %s", path)
	}

	effect, identifier, ok := strings.Cut(name, "_")
	if !ok || identifier == "" {
		return "", fmt.Errorf("not a cache entry path: %s", path)
	}
	if _, err := strconv.Atoi(effect); err != nil {
		return "", fmt.Errorf("not a cache entry path: %s", path)
	}

	return identifier, nil
}

// Write persists an entry, replacing any previous entry at the same
// path. The bytes are written to a temporary file and renamed into
// place so a cancelled or failed write never leaves a partial entry
// visible at the cache path.
func (s Store) Write(path string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("could not create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".pending-*")
	if err != nil {
		return fmt.Errorf("could not create temporary cache file: %w", err)
	}

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("could not write cache entry: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("could not finalize cache entry: %w", err)
	}

	return nil
}

// Exists reports whether an entry is present at the given path.
func (s Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
