package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kikiluvv/memoryreel/pkg/util"
)

// Raw clip defaults, used when ClipOptions leaves them unset.
const (
	DefaultClipPreset = "fast"
	DefaultCRF        = 23
)

// ClipOptions defines clip extraction parameters
type ClipOptions struct {
	Start        time.Duration
	Duration     time.Duration
	Output       string
	Preset       string
	CRF          int // Quality (0-51, lower = better)
	ProgressFunc ProgressFunc
}

// ExtractClip cuts Duration from input starting at Start. The seek happens
// on the input side and the cut is re-encoded so it starts on a clean frame.
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	args, err := clipArgs(input, opts)
	if err != nil {
		return err
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", opts.Duration).
		Msg("extracting clip")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("clip extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}
	return nil
}

func clipArgs(input string, opts ClipOptions) ([]string, error) {
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("invalid clip duration %v", opts.Duration)
	}
	if opts.Start < 0 {
		return nil, fmt.Errorf("invalid clip start %v", opts.Start)
	}
	if opts.Output == "" {
		return nil, errors.New("output path is required")
	}

	preset := opts.Preset
	if preset == "" {
		preset = DefaultClipPreset
	}
	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	if crf < 0 || crf > 51 {
		return nil, fmt.Errorf("CRF must be between 0 and 51, got %d", crf)
	}

	return []string{
		"-ss", util.FormatDuration(opts.Start),
		"-t", util.FormatDuration(opts.Duration),
		"-i", input,
		"-c:v", DefaultVideoCodec,
		"-preset", preset,
		"-crf", fmt.Sprintf("%d", crf),
		"-c:a", DefaultAudioCodec,
		opts.Output,
	}, nil
}

// NormalizeOptions is the target format of a normalized clip.
type NormalizeOptions struct {
	Encoding     Encoding
	ProgressFunc ProgressFunc
}

// NormalizeClip converts a raw cut to the delivery format: rotation baked
// in, scaled to fit and padded black to the output size, constant frame
// rate, square pixels. Audio, when present, is resampled.
func (e *Executor) NormalizeClip(ctx context.Context, input, output string, opts NormalizeOptions) error {
	if output == "" {
		return errors.New("output path is required")
	}

	info, err := e.ProbeVideo(ctx, input)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", input, err)
	}

	e.logger.Debug().
		Str("input", input).
		Int("width", info.Width).
		Int("height", info.Height).
		Int("rotation", info.Rotation).
		Bool("audio", info.HasAudio).
		Msg("normalizing clip")

	runOpts := RunOptions{
		Args:            normalizeArgs(input, output, info, opts.Encoding),
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("normalize")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("normalize failed: %w", err)
	}
	return nil
}

func normalizeArgs(input, output string, info *VideoInfo, enc Encoding) []string {
	vf := NewFilterBuilder().
		Transpose(info.Rotation).
		ScaleToFit(enc.Width, enc.Height).
		Pad(enc.Width, enc.Height, "black").
		FPS(enc.FPS).
		SetSAR().
		Build()

	var args []string
	if info.Rotation != 0 {
		// The transpose above replaces ffmpeg's own autorotation.
		args = append(args, "-noautorotate")
	}
	args = append(args, "-i", input, "-map", "0:v:0")
	if info.HasAudio {
		args = append(args, "-map", "0:a:0")
	}
	args = append(args, "-vf", vf)
	args = append(args, enc.videoArgs()...)

	if info.HasAudio {
		if af := NewFilterBuilder().AResample(enc.AudioSampleRate).Build(); af != "" {
			args = append(args, "-af", af)
		}
		args = append(args, enc.audioArgs()...)
	}

	return append(args, output)
}
