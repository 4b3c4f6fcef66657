// Package cache persists the result of a face scan next to the output
// video so later runs over an unchanged library can skip the scan.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/memoryreel/internal/faces"
	"github.com/kikiluvv/memoryreel/internal/library"
)

// SchemaVersion is the cache layout written by this package.
const SchemaVersion = 1

var (
	// ErrNotFound is returned by Load when no cache file exists.
	ErrNotFound = errors.New("scan cache not found")
	// ErrCorrupt is returned by Load when the file cannot be trusted.
	ErrCorrupt = errors.New("scan cache is corrupt")
)

// document is the on-disk layout. Pointer fields let Load tell a missing
// field from a zero value.
type document struct {
	SchemaVersion *int                 `json:"schema_version"`
	ScanTimestamp *time.Time           `json:"scan_timestamp"`
	VideoCount    *int                 `json:"video_count"`
	FaceCount     *int                 `json:"face_count"`
	ClusterCount  *int                 `json:"cluster_count"`
	Detections    []*detectionRecord   `json:"detections"`
	Clusters      []*clusterRecord     `json:"clusters"`
	Embeddings    map[string][]float32 `json:"embeddings"`
}

type detectionRecord struct {
	VideoPath *string            `json:"video_path"`
	Timestamp *float64           `json:"timestamp"`
	BBox      *faces.BoundingBox `json:"bbox"`
	ClusterID *int               `json:"cluster_id"`
}

type clusterRecord struct {
	ClusterID        *int     `json:"cluster_id"`
	FaceCount        *int     `json:"face_count"`
	VideoAppearances []string `json:"video_appearances"`
}

// Summary is the headline of a cache.
type Summary struct {
	ScanTimestamp time.Time
	VideoCount    int
	FaceCount     int
	ClusterCount  int
}

// Snapshot is a loaded cache.
type Snapshot struct {
	Summary
	detections []faces.FaceDetection
	clusters   []faces.PersonCluster
}

// Detections rebuilds the scanned detections. Images are placeholders;
// detections saved without a vector come back without one.
func (s *Snapshot) Detections() []faces.FaceDetection {
	out := make([]faces.FaceDetection, len(s.detections))
	for i, d := range s.detections {
		d.Image = faces.Placeholder()
		out[i] = d
	}
	return out
}

// Clusters rebuilds the people found by the scan, without representatives.
func (s *Snapshot) Clusters() []faces.PersonCluster {
	out := make([]faces.PersonCluster, len(s.clusters))
	copy(out, s.clusters)
	return out
}

// Store reads and writes the scan cache of one output folder.
type Store struct {
	logger     zerolog.Logger
	dir        string
	file       string
	previewDir string
	formats    []string
	now        func() time.Time
}

// NewStore roots a cache at dir. file and previewDir are relative to dir;
// formats are the video extensions used when validating against a library.
func NewStore(logger zerolog.Logger, dir, file, previewDir string, formats []string) *Store {
	return &Store{
		logger:     logger.With().Str("component", "cache").Logger(),
		dir:        dir,
		file:       file,
		previewDir: previewDir,
		formats:    formats,
		now:        time.Now,
	}
}

// Path is the cache file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.file)
}

// PreviewDir is where person previews are written.
func (s *Store) PreviewDir() string {
	return filepath.Join(s.dir, s.previewDir)
}

// Save overwrites the cache with a scan result and returns its path.
func (s *Store) Save(detections []faces.FaceDetection, clusters []faces.PersonCluster) (string, error) {
	videos := make(map[string]bool)
	records := make([]*detectionRecord, len(detections))
	embeddings := make(map[string][]float32, len(detections))
	for i, d := range detections {
		videos[d.VideoPath] = true
		records[i] = &detectionRecord{
			VideoPath: ptr(d.VideoPath),
			Timestamp: ptr(d.Timestamp),
			BBox:      ptr(d.Box),
			ClusterID: ptr(d.ClusterID),
		}
		if len(d.Embedding) > 0 {
			embeddings[strconv.Itoa(i)] = d.Embedding
		}
	}

	clusterRecords := make([]*clusterRecord, len(clusters))
	for i, c := range clusters {
		appearances := c.VideoAppearances
		if appearances == nil {
			appearances = []string{}
		}
		clusterRecords[i] = &clusterRecord{
			ClusterID:        ptr(c.ID),
			FaceCount:        ptr(c.FaceCount),
			VideoAppearances: appearances,
		}
	}

	doc := document{
		SchemaVersion: ptr(SchemaVersion),
		ScanTimestamp: ptr(s.now()),
		VideoCount:    ptr(len(videos)),
		FaceCount:     ptr(len(detections)),
		ClusterCount:  ptr(len(clusters)),
		Detections:    records,
		Clusters:      clusterRecords,
		Embeddings:    embeddings,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode scan cache: %w", err)
	}

	path := s.Path()
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	s.logger.Debug().
		Str("path", path).
		Int("faces", len(detections)).
		Int("clusters", len(clusters)).
		Msg("scan cache saved")
	return path, nil
}

// writeAtomic writes through a temp file in the same directory so readers
// never see a partial cache.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write scan cache: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace scan cache: %w", err)
	}
	return nil
}

// Load reads the cache. A missing file is ErrNotFound; anything that does
// not match the schema is ErrCorrupt.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrCorrupt)
	}

	snap, err := doc.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snap, nil
}

func (d *document) snapshot() (*Snapshot, error) {
	switch {
	case d.SchemaVersion == nil:
		return nil, errors.New("missing schema_version")
	case *d.SchemaVersion != SchemaVersion:
		return nil, fmt.Errorf("unsupported schema_version %d", *d.SchemaVersion)
	case d.ScanTimestamp == nil:
		return nil, errors.New("missing scan_timestamp")
	case d.VideoCount == nil || d.FaceCount == nil || d.ClusterCount == nil:
		return nil, errors.New("missing counts")
	case d.Detections == nil || d.Clusters == nil || d.Embeddings == nil:
		return nil, errors.New("missing detections, clusters or embeddings")
	}

	snap := &Snapshot{
		Summary: Summary{
			ScanTimestamp: *d.ScanTimestamp,
			VideoCount:    *d.VideoCount,
			FaceCount:     *d.FaceCount,
			ClusterCount:  *d.ClusterCount,
		},
		detections: make([]faces.FaceDetection, len(d.Detections)),
		clusters:   make([]faces.PersonCluster, len(d.Clusters)),
	}

	for i, r := range d.Detections {
		if r == nil || r.VideoPath == nil || r.Timestamp == nil || r.BBox == nil || r.ClusterID == nil {
			return nil, fmt.Errorf("detection %d is incomplete", i)
		}
		snap.detections[i] = faces.FaceDetection{
			VideoPath: *r.VideoPath,
			Timestamp: *r.Timestamp,
			Box:       *r.BBox,
			ClusterID: *r.ClusterID,
		}
	}

	for key, vec := range d.Embeddings {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(snap.detections) {
			return nil, fmt.Errorf("embedding key %q does not name a detection", key)
		}
		snap.detections[i].Embedding = faces.Embedding(vec)
	}

	for i, r := range d.Clusters {
		if r == nil || r.ClusterID == nil || r.FaceCount == nil || r.VideoAppearances == nil {
			return nil, fmt.Errorf("cluster %d is incomplete", i)
		}
		snap.clusters[i] = faces.PersonCluster{
			ID:               *r.ClusterID,
			FaceCount:        *r.FaceCount,
			VideoAppearances: r.VideoAppearances,
		}
	}

	return snap, nil
}

// Summary reads the cache headline.
func (s *Store) Summary() (*Summary, error) {
	snap, err := s.Load()
	if err != nil {
		return nil, err
	}
	return &snap.Summary, nil
}

// IsValid reports whether the cache still describes videoFolder.
func (s *Store) IsValid(videoFolder string) bool {
	_, ok := s.Valid(videoFolder)
	return ok
}

// Valid loads the cache and checks it against videoFolder: the same number
// of videos, none modified after the scan, and every preview on disk. The
// snapshot is returned only when valid. Any error counts as invalid.
func (s *Store) Valid(videoFolder string) (*Snapshot, bool) {
	snap, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("ignoring unreadable scan cache")
		}
		return nil, false
	}

	videos, err := library.Find(videoFolder, s.formats)
	if err != nil {
		s.logger.Debug().Err(err).Msg("cannot enumerate videos for cache validation")
		return nil, false
	}
	if len(videos) != snap.VideoCount {
		s.logger.Debug().Int("cached", snap.VideoCount).Int("current", len(videos)).Msg("video count changed")
		return nil, false
	}
	for _, v := range videos {
		if v.ModTime.After(snap.ScanTimestamp) {
			s.logger.Debug().Str("video", v.Name).Msg("video modified after scan")
			return nil, false
		}
	}

	info, err := os.Stat(s.PreviewDir())
	if err != nil || !info.IsDir() {
		return nil, false
	}
	for i := 0; i < snap.ClusterCount; i++ {
		if _, err := os.Stat(PreviewPath(s.PreviewDir(), i)); err != nil {
			s.logger.Debug().Int("person", i).Msg("preview missing")
			return nil, false
		}
	}

	return snap, true
}

// Clear removes the cache file and all previews. Missing files are fine.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove scan cache: %w", err)
	}
	if err := os.RemoveAll(s.PreviewDir()); err != nil {
		return fmt.Errorf("failed to remove previews: %w", err)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
