// Package library finds the source videos and background music a run works from.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"
)

var (
	// ErrFolderNotFound is returned when the input folder does not exist.
	ErrFolderNotFound = errors.New("input folder not found")
	// ErrNoVideos is returned when the folder holds no file with a supported extension.
	ErrNoVideos = errors.New("no video files found")
)

// Sort orders accepted by ListVideos.
const (
	SortByName    = "name"
	SortByNatural = "natural"
)

// Video is one matching file in the input folder.
type Video struct {
	Path    string
	Name    string
	ModTime time.Time
}

// Find returns every regular file in folder whose extension matches one of
// formats, case-insensitively. Paths are absolute, so the same folder named
// two ways yields the same paths. The result is unordered and may be empty.
func Find(folder string, formats []string) ([]Video, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", folder, err)
	}
	folder = abs

	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrFolderNotFound, folder)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", folder, err)
	}

	var videos []Video
	for _, entry := range entries {
		if entry.IsDir() || !HasExtension(entry.Name(), formats) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, err
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		videos = append(videos, Video{
			Path:    filepath.Join(folder, entry.Name()),
			Name:    entry.Name(),
			ModTime: fi.ModTime(),
		})
	}

	return videos, nil
}

// ListVideos returns the sorted paths of the supported videos in folder.
// It distinguishes a missing folder from a folder without videos.
func ListVideos(folder string, formats []string, order string) ([]string, error) {
	videos, err := Find(folder, formats)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoVideos, folder)
	}

	names := make([]string, len(videos))
	byName := make(map[string]string, len(videos))
	for i, v := range videos {
		names[i] = v.Name
		byName[v.Name] = v.Path
	}

	SortNames(names, order)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = byName[name]
	}
	return paths, nil
}

// SortNames sorts file names in place using the given order.
func SortNames(names []string, order string) {
	if order == SortByNatural {
		natsort.Sort(names)
		return
	}
	sort.Strings(names)
}

// HasExtension reports whether name ends in one of exts, ignoring case.
func HasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
