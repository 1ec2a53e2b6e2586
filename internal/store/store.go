// Package store persists received files into a flat output directory.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
)

const (
	// tempPrefix names in-progress saves. They live in the output directory so
	// the final rename never crosses a filesystem, which reserves the prefix:
	// received names starting with it are rejected like unsafe names, so a
	// sender can never replace or collide with another worker's partial file.
	tempPrefix = ".ferry-partial-"
	filePerm   = 0o644
	dirPerm    = 0o755
)

var ErrUnsafeFileName = errors.New("unsafe file name")

var reservedNames = []string{"", ".", ".."}

// Store writes files by leaf name into a single directory. Two writers saving
// the same name concurrently race; the last rename wins and no content is mixed.
type Store struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: filepath.Clean(dir)}
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Fs returns the filesystem the store writes to.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Init creates the output directory if it does not exist.
func (s *Store) Init() error {
	if err := s.fs.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("creating output directory %s: %w", s.dir, err)
	}
	return nil
}

// ValidateName returns ErrUnsafeFileName if name is anything but a plain leaf
// name. Names using the reserved temporary prefix are refused as well.
func ValidateName(name string) error {
	switch {
	case slices.Contains(reservedNames, name):
		return fmt.Errorf("%w: %q is reserved", ErrUnsafeFileName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafeFileName, name)
	case strings.HasPrefix(name, tempPrefix):
		return fmt.Errorf("%w: %q uses the temporary file prefix", ErrUnsafeFileName, name)
	case !filepath.IsLocal(name):
		return fmt.Errorf("%w: %q is not a local name", ErrUnsafeFileName, name)
	}
	return nil
}

// Path resolves the destination of name, guaranteeing it stays inside the output directory.
func (s *Store) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if filepath.Dir(path) != s.dir {
		return "", fmt.Errorf("%w: %q resolves outside %s", ErrUnsafeFileName, name, s.dir)
	}
	return path, nil
}

// Save writes content under name, replacing any existing file. The content is
// written to a temporary file first and renamed into place, so a failed save
// leaves a previous version untouched.
func (s *Store) Save(name string, content []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	tmp, err := afero.TempFile(s.fs, s.dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("creating temporary file for %q: %w", name, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", name, err)
	}
	if err := s.fs.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("setting permissions of %q: %w", name, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("moving %q into place: %w", name, err)
	}
	committed = true
	return nil
}

// Exists reports whether a file with the given name has been saved.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = s.fs.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
