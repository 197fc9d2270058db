// Package filex describes the on-disk storage layout and the file operations
// the worker and the retention engine share.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	videosDir     = "videos"
	thumbnailsDir = "thumbnails"
)

// Layout is the storage root holding videos/ and thumbnails/.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout { return Layout{Root: root} }

func (l Layout) VideosDir() string     { return filepath.Join(l.Root, videosDir) }
func (l Layout) ThumbnailsDir() string { return filepath.Join(l.Root, thumbnailsDir) }

// VideoPath returns <root>/videos/<id>.<ext>.
func (l Layout) VideoPath(id, ext string) string {
	return filepath.Join(l.VideosDir(), id+"."+ext)
}

// ThumbnailPath returns <root>/thumbnails/<id>.jpg.
func (l Layout) ThumbnailPath(id string) string {
	return filepath.Join(l.ThumbnailsDir(), id+".jpg")
}

// Ensure creates both storage directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.VideosDir(), l.ThumbnailsDir()} {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// Usage sums the sizes of every regular file under videos/ and thumbnails/.
// Files the catalog does not know about are counted too. Missing directories
// contribute zero.
func (l Layout) Usage() (int64, error) {
	var total int64
	for _, dir := range []string{l.VideosDir(), l.ThumbnailsDir()} {
		n, err := DirSize(dir)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// DirSize walks dir recursively and sums regular file sizes. A missing dir is
// zero; a file disappearing mid-walk is skipped.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	return total, nil
}

// Remove deletes path and returns the size it had. An empty path or a file
// that is already gone is not an error and frees zero bytes.
func Remove(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("remove %s: %w", path, err)
	}
	return info.Size(), nil
}

// Size returns the size of path, or zero when it does not exist.
func Size(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
