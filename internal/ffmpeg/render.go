package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kikiluvv/memoryreel/internal/overlays"
)

// TitleOptions describes the opening caption burned into the video.
type TitleOptions struct {
	Title        overlays.Title
	Encoding     Encoding
	ProgressFunc ProgressFunc
}

// AddTitleOverlay draws the title over the first seconds of input and
// re-encodes to the delivery format. Each line's text is handed to drawtext
// through a file next to output, removed afterwards.
func (e *Executor) AddTitleOverlay(ctx context.Context, input, output string, opts TitleOptions) error {
	if err := opts.Title.Validate(); err != nil {
		return fmt.Errorf("invalid title: %w", err)
	}
	if _, err := os.Stat(opts.Title.FontPath); err != nil {
		return fmt.Errorf("title font: %w", err)
	}

	lines := opts.Title.Lines()
	textFiles := make([]string, 0, len(lines))
	defer func() {
		for _, f := range textFiles {
			os.Remove(f)
		}
	}()
	for _, line := range lines {
		f, err := os.CreateTemp(filepath.Dir(output), "title-*.txt")
		if err != nil {
			return fmt.Errorf("failed to write title text: %w", err)
		}
		textFiles = append(textFiles, f.Name())
		_, err = f.WriteString(line)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to write title text: %w", err)
		}
	}

	filters, err := opts.Title.Filters(textFiles)
	if err != nil {
		return err
	}

	info, err := e.ProbeVideo(ctx, input)
	if err != nil {
		return fmt.Errorf("title overlay: %w", err)
	}

	e.logger.Info().
		Int("lines", len(lines)).
		Float64("duration", opts.Title.Duration).
		Msg("adding title overlay")

	return e.RenderWithFilterBuilder(ctx, input, output, FilterChain{Filters: filters}, RenderOptions{
		Encoding:     opts.Encoding,
		HasAudio:     info.HasAudio,
		ProgressFunc: opts.ProgressFunc,
	})
}

// RenderOptions are the output settings of a filtered re-encode.
type RenderOptions struct {
	Encoding     Encoding
	HasAudio     bool
	ProgressFunc ProgressFunc
}

// RenderWithFilterBuilder re-encodes input through a video filter chain in
// the delivery format. Audio is resampled and re-encoded when present.
func (e *Executor) RenderWithFilterBuilder(ctx context.Context, input, output string, filterChain FilterChain, opts RenderOptions) error {
	if input == "" {
		return errors.New("input path is required")
	}
	if output == "" {
		return errors.New("output path is required")
	}
	if len(filterChain.Filters) == 0 {
		return errors.New("filter chain cannot be empty")
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", output).
		Int("filters", len(filterChain.Filters)).
		Msg("rendering with filter builder")

	runOpts := RunOptions{
		Args:            renderArgs(input, output, filterChain, opts),
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("filter builder output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("filter builder render failed: %w", err)
	}
	return nil
}

func renderArgs(input, output string, filterChain FilterChain, opts RenderOptions) []string {
	args := []string{
		"-i", input,
		"-vf", strings.Join(filterChain.Filters, ","),
	}
	args = append(args, opts.Encoding.videoArgs()...)
	if opts.HasAudio {
		if af := NewFilterBuilder().AResample(opts.Encoding.AudioSampleRate).Build(); af != "" {
			args = append(args, "-af", af)
		}
		args = append(args, opts.Encoding.audioArgs()...)
	}
	return append(args, output)
}
