package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/kikiluvv/memoryreel/internal/faces"
)

// PreviewPath is the preview image of one person.
func PreviewPath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("person_%d.jpg", id))
}

// WritePreviews replaces the preview directory with one width x height JPEG
// per cluster, named by cluster ID. Clusters without a representative get a
// blank preview so the directory always matches the cluster list.
func (s *Store) WritePreviews(clusters []faces.PersonCluster, width, height int) (string, error) {
	dir := s.PreviewDir()
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear previews: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create preview directory: %w", err)
	}

	for _, c := range clusters {
		img := c.Representative
		if img == nil {
			img = faces.Placeholder()
		}
		thumb := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)

		path := PreviewPath(dir, c.ID)
		if err := imaging.Save(thumb, path, imaging.JPEGQuality(90)); err != nil {
			return "", fmt.Errorf("failed to write preview for person %d: %w", c.ID, err)
		}
	}

	s.logger.Debug().Str("dir", dir).Int("count", len(clusters)).Msg("previews written")
	return dir, nil
}
