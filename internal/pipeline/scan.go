package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kikiluvv/memoryreel/internal/cache"
	"github.com/kikiluvv/memoryreel/internal/faces"
)

type scanResult struct {
	detections []faces.FaceDetection
	clusters   []faces.PersonCluster
	fromCache  bool
}

// scanPhase reuses a valid cache when allowed, otherwise scans every video,
// clusters the faces and persists previews and cache.
func (p *Pipeline) scanPhase(ctx context.Context, videos []string, store *cache.Store, opts Options) (*scanResult, error) {
	if !opts.Rescan {
		if snap, ok := store.Valid(opts.InputDir); ok {
			if scan, ok := p.reuseCache(snap, opts.AssumeYes); ok {
				return scan, nil
			}
		}
	}

	detections, err := p.scanVideos(ctx, videos)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return nil, ErrNoFaces
	}
	p.logger.Info().Int("faces", len(detections)).Msg("scan complete")

	clusterer := faces.NewClusterer(p.cfg.Faces.ClusterThreshold, p.cfg.Faces.MinClusterSize)
	labeled, clusters, err := clusterer.Cluster(detections)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}
	p.logger.Info().Int("people", len(clusters)).Msg("faces clustered")

	if _, err := store.WritePreviews(clusters, p.cfg.Faces.PreviewWidth, p.cfg.Faces.PreviewHeight); err != nil {
		p.logger.Warn().Err(err).Msg("failed to write previews")
	}
	if path, err := store.Save(labeled, clusters); err != nil {
		p.logger.Warn().Err(err).Msg("failed to save scan cache")
	} else {
		p.logger.Debug().Str("path", path).Msg("scan cache written")
	}

	return &scanResult{detections: labeled, clusters: clusters}, nil
}

func (p *Pipeline) reuseCache(snap *cache.Snapshot, assumeYes bool) (*scanResult, bool) {
	if !assumeYes {
		if p.prompter == nil {
			return nil, false
		}
		p.prompter.CacheSummary(&snap.Summary)
		ok, err := p.prompter.Confirm("Use the cached scan?")
		if err != nil || !ok {
			return nil, false
		}
	}

	p.logger.Info().
		Time("scanned", snap.ScanTimestamp).
		Int("faces", snap.FaceCount).
		Int("people", snap.ClusterCount).
		Msg("using cached scan")
	return &scanResult{detections: snap.Detections(), clusters: snap.Clusters(), fromCache: true}, true
}

// scanVideos collects every face with its embedding across videos. Videos
// and frames that fail are skipped.
func (p *Pipeline) scanVideos(ctx context.Context, videos []string) ([]faces.FaceDetection, error) {
	bar := p.newBar(len(videos), "Scanning faces")
	defer bar.Finish()

	var detections []faces.FaceDetection
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := p.logger.With().Str("video", filepath.Base(video)).Logger()

		frames, err := p.media.ExtractFrames(ctx, video, p.cfg.Faces.ScanInterval)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("frame extraction failed, skipping video")
			bar.Add(1)
			continue
		}

		found := 0
		for _, frame := range frames {
			embedded, err := p.model.DetectWithEmbeddings(ctx, frame)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn().Err(err).Float64("timestamp", frame.Timestamp).Msg("face scan failed, skipping frame")
				continue
			}
			for _, face := range embedded {
				detections = append(detections, faces.FaceDetection{
					VideoPath: video,
					Timestamp: frame.Timestamp,
					Box:       face.Box,
					Embedding: face.Embedding,
					Image:     face.Image,
					ClusterID: faces.Noise,
				})
				found++
			}
		}

		log.Debug().Int("frames", len(frames)).Int("faces", found).Msg("video scanned")
		bar.Add(1)
	}
	return detections, nil
}

// selectPeople takes the selection from explicit IDs or asks the user.
func (p *Pipeline) selectPeople(opts Options, clusters []faces.PersonCluster, previewDir string) ([]int, error) {
	if opts.FaceIDs != "" {
		return faces.ParseSelection(opts.FaceIDs, clusters)
	}
	if p.prompter == nil {
		return nil, ErrNoSelection
	}
	ids, err := p.prompter.SelectPeople(clusters, previewDir)
	if err != nil {
		return nil, errors.Join(ErrNoSelection, err)
	}
	return ids, nil
}
