package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/memoryreel/internal/config"
	"github.com/kikiluvv/memoryreel/internal/ffmpeg"
	"github.com/kikiluvv/memoryreel/internal/pipeline"
	"github.com/kikiluvv/memoryreel/internal/vision"
)

var makeFlags struct {
	input          string
	audio          string
	output         string
	title          string
	titleDuration  float64
	titleFontSize  int
	titleTextColor string
	clipDuration   float64
	selectFaces    bool
	faceIDs        string
	rescan         bool
	yes            bool
}

var makeCmd = &cobra.Command{
	Use:   "make",
	Short: "Build a highlight video from a folder of videos",
	Example: `  memoryreel make -i ~/Videos/summer -t "Summer 2024"
  memoryreel make -i ./trip --select-faces --face-ids 0,2 -a song.mp3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		applyMakeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		selectFaces := makeFlags.selectFaces || makeFlags.faceIDs != ""
		pipe, closeModel, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeModel()

		result, err := pipe.Run(cmd.Context(), pipeline.Options{
			InputDir:    makeFlags.input,
			OutputDir:   makeFlags.output,
			AudioPath:   makeFlags.audio,
			Title:       makeFlags.title,
			SelectFaces: selectFaces,
			FaceIDs:     makeFlags.faceIDs,
			Rescan:      makeFlags.rescan,
			AssumeYes:   makeFlags.yes,
		})
		if result != nil {
			reportOutcomes(result)
		}
		if err != nil {
			return err
		}

		log.Info().
			Str("output", result.Output).
			Int("clips", result.ClipCount()).
			Dur("elapsed", result.Elapsed).
			Msg("done")
		fmt.Fprintln(cmd.OutOrStdout(), result.Output)
		return nil
	},
}

var scanFlags struct {
	input  string
	output string
	rescan bool
	yes    bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan faces, group them into people and write previews",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, closeModel, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeModel()

		result, err := pipe.Run(cmd.Context(), pipeline.Options{
			InputDir:  scanFlags.input,
			OutputDir: scanFlags.output,
			Rescan:    scanFlags.rescan,
			AssumeYes: scanFlags.yes,
			ScanOnly:  true,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Previews: %s\n", result.PreviewDir)
		for _, c := range result.Clusters {
			fmt.Fprintf(out, "  person_%d.jpg - %d detections (%d videos)\n", c.ID, c.FaceCount, len(c.VideoAppearances))
		}
		return nil
	},
}

func init() {
	f := makeCmd.Flags()
	f.StringVarP(&makeFlags.input, "input", "i", "", "folder of source videos")
	f.StringVarP(&makeFlags.audio, "audio", "a", "", "background music file")
	f.StringVarP(&makeFlags.output, "output", "o", "", "output folder (default: the input folder)")
	f.StringVarP(&makeFlags.title, "title", "t", "", "title text, \\n separates lines")
	f.Float64Var(&makeFlags.titleDuration, "title-duration", 0, "seconds the title stays on screen")
	f.IntVar(&makeFlags.titleFontSize, "title-font-size", 0, "title font size")
	f.StringVar(&makeFlags.titleTextColor, "title-text-color", "", "title color as #RRGGBB")
	f.Float64VarP(&makeFlags.clipDuration, "clip-duration", "d", 0, "seconds per clip")
	f.BoolVar(&makeFlags.selectFaces, "select-faces", false, "feature chosen people")
	f.StringVar(&makeFlags.faceIDs, "face-ids", "", "person IDs to feature, e.g. 0,2 or all")
	f.BoolVar(&makeFlags.rescan, "rescan", false, "ignore the scan cache")
	f.BoolVarP(&makeFlags.yes, "yes", "y", false, "reuse a valid scan cache without asking")
	makeCmd.MarkFlagRequired("input")

	s := scanCmd.Flags()
	s.StringVarP(&scanFlags.input, "input", "i", "", "folder of source videos")
	s.StringVarP(&scanFlags.output, "output", "o", "", "folder for cache and previews (default: the input folder)")
	s.BoolVar(&scanFlags.rescan, "rescan", false, "ignore the scan cache")
	s.BoolVarP(&scanFlags.yes, "yes", "y", false, "reuse a valid scan cache without asking")
	scanCmd.MarkFlagRequired("input")
}

// applyMakeFlags lets explicitly set flags override the config.
func applyMakeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("title-duration") {
		cfg.Title.Duration = makeFlags.titleDuration
	}
	if f.Changed("title-font-size") {
		cfg.Title.FontSize = makeFlags.titleFontSize
	}
	if f.Changed("title-text-color") {
		cfg.Title.TextColor = makeFlags.titleTextColor
	}
	if f.Changed("clip-duration") {
		cfg.Clip.Duration = makeFlags.clipDuration
	}
}

// newPipeline wires ffmpeg and the face models. The returned func closes the models.
func newPipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	media, err := ffmpeg.New(log.Logger, cfg.FFmpeg)
	if err != nil {
		return nil, nil, err
	}

	model, err := vision.Open(cmd.Context(), log.Logger, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start face models: %w", err)
	}
	closeModel := func() {
		if err := model.Close(); err != nil {
			log.Debug().Err(err).Msg("face models closed with error")
		}
	}

	var progress io.Writer = os.Stderr
	if quiet {
		progress = io.Discard
	}

	prompter := pipeline.NewPrompter(cmd.InOrStdin(), os.Stderr)
	return pipeline.New(log.Logger, cfg, media, model, prompter, progress), closeModel, nil
}

func reportOutcomes(result *pipeline.Result) {
	for _, o := range result.Outcomes {
		if reason := o.Reason(); reason != "" {
			log.Warn().Str("video", filepath.Base(o.Video)).Str("reason", reason).Msg("skipped")
		}
	}
	if result.Audio.Missing != "" {
		log.Warn().Str("audio", result.Audio.Missing).Msg("audio file not found, video has no music")
	}
}
