package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kikiluvv/memoryreel/pkg/util"
)

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	Inputs       []string
	Output       string
	ProgressFunc ProgressFunc
}

// Concat joins clips that share one encoding with the concat demuxer and
// stream copy. A single input is copied as is.
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return errors.New("no input files provided")
	}
	if opts.Output == "" {
		return errors.New("output path is required")
	}

	if len(opts.Inputs) == 1 {
		e.logger.Debug().Str("input", opts.Inputs[0]).Msg("single clip, copying")
		if err := util.CopyFile(opts.Inputs[0], opts.Output); err != nil {
			return fmt.Errorf("copy single clip: %w", err)
		}
		return nil
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Msg("concatenating clips")

	listFile, err := writeConcatList(filepath.Dir(opts.Output), opts.Inputs)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(listFile)

	runOpts := RunOptions{
		Args: []string{
			"-f", "concat",
			"-safe", "0",
			"-i", listFile,
			"-c", "copy",
			opts.Output,
		},
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("concatenating")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("concat failed: %w", err)
	}
	return nil
}

// writeConcatList writes a concat demuxer list into dir.
func writeConcatList(dir string, inputs []string) (string, error) {
	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", err
	}

	if _, err := f.WriteString(concatList(inputs)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// concatList renders one file directive per input with absolute paths.
// Single quotes in a path are closed, escaped and reopened.
func concatList(inputs []string) string {
	var b strings.Builder
	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			absPath = input
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(absPath, "'", `'\''`))
	}
	return b.String()
}
