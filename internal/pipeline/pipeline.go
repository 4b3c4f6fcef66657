// Package pipeline sequences a highlight run: find the videos, pick a moment
// in each (by face score, or by a chosen person), cut and normalize clips,
// then join them with an optional title and background music.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/kikiluvv/memoryreel/internal/cache"
	"github.com/kikiluvv/memoryreel/internal/clips"
	"github.com/kikiluvv/memoryreel/internal/config"
	"github.com/kikiluvv/memoryreel/internal/faces"
	"github.com/kikiluvv/memoryreel/internal/ffmpeg"
	"github.com/kikiluvv/memoryreel/internal/library"
	"github.com/kikiluvv/memoryreel/pkg/util"
)

// Pipeline orchestrates the entire video processing workflow
type Pipeline struct {
	logger   zerolog.Logger
	cfg      *config.Config
	media    MediaTools
	model    FaceModel
	scorer   *faces.Scorer
	prompter *Prompter
	progress io.Writer
	now      func() time.Time
}

// New creates a pipeline. prompter may be nil, in which case face mode
// needs explicit IDs and a valid cache is reused only with AssumeYes.
// progress receives progress bars; nil discards them.
func New(logger zerolog.Logger, cfg *config.Config, media MediaTools, model FaceModel, prompter *Prompter, progress io.Writer) *Pipeline {
	if progress == nil {
		progress = io.Discard
	}
	logger = logger.With().Str("component", "pipeline").Logger()

	w := cfg.Detection.Weights
	weights := faces.Weights{Area: w.Area, Expression: w.Expression, Centering: w.Centering, Confidence: w.Confidence}

	return &Pipeline{
		logger:   logger,
		cfg:      cfg,
		media:    media,
		model:    model,
		scorer:   faces.NewScorer(logger, weights, model, model),
		prompter: prompter,
		progress: progress,
		now:      time.Now,
	}
}

// Store returns the scan cache of an output folder.
func (p *Pipeline) Store(outputDir string) *cache.Store {
	return cache.NewStore(p.logger, outputDir, p.cfg.Faces.CacheFile, p.cfg.Faces.PreviewDir, p.cfg.Library.VideoFormats)
}

// Run executes one highlight run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	started := p.now()
	if opts.InputDir == "" {
		return nil, errors.New("input folder is required")
	}

	videos, err := library.ListVideos(opts.InputDir, p.cfg.Library.VideoFormats, p.cfg.Library.SortOrder)
	if err != nil {
		return nil, err
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = opts.InputDir
	}
	if err := util.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	result := &Result{}
	if !opts.ScanOnly {
		result.Audio = p.resolveAudio(opts.AudioPath)
	}

	p.logger.Info().
		Int("videos", len(videos)).
		Str("input", opts.InputDir).
		Str("output", outDir).
		Bool("select_faces", opts.SelectFaces || opts.ScanOnly).
		Msg("starting run")

	var groups map[string][]faces.FaceDetection
	if opts.SelectFaces || opts.ScanOnly {
		store := p.Store(outDir)
		scan, err := p.scanPhase(ctx, videos, store, opts)
		if err != nil {
			return nil, err
		}
		result.Clusters = scan.clusters
		result.UsedCache = scan.fromCache
		result.PreviewDir = store.PreviewDir()

		if opts.ScanOnly {
			result.Elapsed = p.now().Sub(started)
			return result, nil
		}

		ids, err := p.selectPeople(opts, scan.clusters, store.PreviewDir())
		if err != nil {
			return nil, err
		}
		result.SelectedIDs = ids
		groups = faces.GroupByVideo(scan.detections, ids)
		if len(groups) == 0 {
			p.logger.Warn().Ints("people", ids).Msg("selected people match none of the videos, using best faces instead")
		}

		p.logger.Info().
			Ints("people", ids).
			Int("videos_with_people", len(groups)).
			Int("videos", len(videos)).
			Msg("people selected")
	}

	workDir := filepath.Join(p.cfg.TempDir, "memoryreel-"+uuid.New().String())
	if err := util.EnsureDir(workDir); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			p.logger.Warn().Err(err).Str("dir", workDir).Msg("failed to remove work dir")
		}
	}()

	manager, err := p.produceClips(ctx, videos, workDir, groups, result.SelectedIDs)
	if err != nil {
		return nil, err
	}
	result.Outcomes = manager.All()

	paths := manager.Paths()
	if len(paths) == 0 {
		return result, ErrNoClips
	}

	output, err := p.finalize(ctx, workDir, outDir, paths, opts.Title, result.Audio)
	if err != nil {
		return result, err
	}
	result.Output = output
	result.Elapsed = p.now().Sub(started)

	p.logger.Info().
		Str("output", output).
		Int("clips", len(paths)).
		Int("skipped", len(manager.Skipped())).
		Dur("elapsed", result.Elapsed).
		Msg("highlight video complete")
	return result, nil
}

func (p *Pipeline) resolveAudio(explicit string) library.AudioChoice {
	choice := library.ResolveAudio(explicit, p.cfg.Audio.BGMFolder, p.cfg.Audio.DefaultPath, p.cfg.Audio.Formats)
	switch {
	case choice.Missing != "":
		p.logger.Warn().Str("audio", choice.Missing).Msg("audio file not found, continuing without music")
	case choice.Path != "":
		p.logger.Info().Str("audio", filepath.Base(choice.Path)).Str("source", string(choice.Source)).Msg("background music selected")
	default:
		p.logger.Info().Msg("no background music available")
	}
	return choice
}

// produceClips cuts one normalized clip per video in order. A video whose
// frames, cut or normalization fail is skipped with its reason recorded.
func (p *Pipeline) produceClips(ctx context.Context, videos []string, workDir string, groups map[string][]faces.FaceDetection, ids []int) (*clips.Manager, error) {
	manager := clips.NewManager()
	bar := p.newBar(len(videos), "Cutting clips")
	defer bar.Finish()

	enc := ffmpeg.NewEncoding(p.cfg.Output, p.cfg.Encoding)
	clipDuration := util.Seconds(p.cfg.Clip.Duration)

	for i, video := range videos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := p.logger.With().Int("index", i+1).Int("total", len(videos)).Str("video", filepath.Base(video)).Logger()

		var start float64
		detections, personMatch := groups[video]
		if personMatch {
			start = faces.BestTimestampForPerson(detections, ids)
			log.Info().Float64("start", start).Msg("selected person found")
		} else {
			frames, err := p.media.ExtractFrames(ctx, video, p.cfg.Detection.Interval)
			if err == nil && len(frames) == 0 {
				err = errors.New("no frames")
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn().Err(err).Msg("frame extraction failed, skipping video")
				manager.Add(clips.Skipped(i, video, clips.StageFrames, err))
				bar.Add(1)
				continue
			}
			start = p.scorer.PickBestTimestamp(ctx, frames)
			log.Info().Float64("start", start).Int("frames", len(frames)).Msg("best frame selected")
		}

		raw, normalized := clips.ClipPaths(workDir, i)
		err := p.media.ExtractClip(ctx, video, ffmpeg.ClipOptions{
			Start:    util.Seconds(start),
			Duration: clipDuration,
			Output:   raw,
			Preset:   p.cfg.Clip.Preset,
			CRF:      p.cfg.Clip.CRF,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("clip extraction failed, skipping video")
			manager.Add(clips.Skipped(i, video, clips.StageExtract, err))
			bar.Add(1)
			continue
		}

		if err := p.media.NormalizeClip(ctx, raw, normalized, ffmpeg.NormalizeOptions{Encoding: enc}); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("normalization failed, skipping video")
			manager.Add(clips.Skipped(i, video, clips.StageNormalize, err))
			bar.Add(1)
			continue
		}
		util.CleanupFiles(raw)

		manager.Add(clips.Done(i, video, util.Seconds(start), normalized, personMatch))
		bar.Add(1)
	}

	return manager, nil
}

func (p *Pipeline) newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.progress),
		progressbar.OptionShowCount(),
	)
}
