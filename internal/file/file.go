package file

import (
	"archive/tar"
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/SpatiumPortae/ferry/internal/store"
	"github.com/klauspost/pgzip"
	"github.com/spf13/afero"
)

// PackDir tars and gzip-compresses every regular file of the flat directory dir
// into w, returning the number of files packed. Entries that are not plain
// received files, such as in-progress temporary files, are left out, as are
// the paths listed in exclude (the archive itself when it is written into dir).
func PackDir(fs afero.Fs, dir string, w io.Writer, exclude ...string) (int, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	// chained writers -> writing to tw writes to gw -> writes to bw
	bw := bufio.NewWriter(w)
	gw := pgzip.NewWriter(bw)
	tw := tar.NewWriter(gw)

	packed := 0
	for _, fi := range entries {
		path := filepath.Join(dir, fi.Name())
		if !fi.Mode().IsRegular() || store.ValidateName(fi.Name()) != nil || excluded(path, exclude) {
			continue
		}
		if err := addToTarArchive(fs, tw, path); err != nil {
			return packed, err
		}
		packed++
	}
	if err := tw.Close(); err != nil {
		return packed, fmt.Errorf("closing tar writer: %w", err)
	}
	if err := gw.Close(); err != nil {
		return packed, fmt.Errorf("closing gzip writer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return packed, fmt.Errorf("flushing archive: %w", err)
	}
	return packed, nil
}

// addToTarArchive adds a single file to a tar archive under its base name.
func addToTarArchive(fs afero.Fs, tw *tar.Writer, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	header.Name = fi.Name()

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("writing header of %s: %w", path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	return nil
}

func excluded(path string, exclude []string) bool {
	for _, ex := range exclude {
		if samePath(path, ex) {
			return true
		}
	}
	return false
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
