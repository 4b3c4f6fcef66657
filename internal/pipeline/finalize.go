package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kikiluvv/memoryreel/internal/ffmpeg"
	"github.com/kikiluvv/memoryreel/internal/library"
	"github.com/kikiluvv/memoryreel/internal/overlays"
	"github.com/kikiluvv/memoryreel/pkg/util"
)

// OutputName is the file name of the video produced on day t.
func OutputName(t time.Time) string {
	return t.Format("20060102") + "_highlight_video.mp4"
}

// finalize joins the clips, then applies the title and music. Only the
// join is fatal; a failed title or mix falls back to the previous stage.
func (p *Pipeline) finalize(ctx context.Context, workDir, outDir string, paths []string, title string, audio library.AudioChoice) (string, error) {
	enc := ffmpeg.NewEncoding(p.cfg.Output, p.cfg.Encoding)

	current := filepath.Join(workDir, "concatenated.mp4")
	if err := p.media.Concat(ctx, ffmpeg.ConcatOptions{Inputs: paths, Output: current}); err != nil {
		return "", fmt.Errorf("failed to join clips: %w", err)
	}

	if title != "" {
		titled := filepath.Join(workDir, "titled.mp4")
		err := p.media.AddTitleOverlay(ctx, current, titled, ffmpeg.TitleOptions{
			Title: overlays.Title{
				Text:     title,
				Duration: p.cfg.Title.Duration,
				FontPath: p.cfg.Title.FontPath,
				FontSize: p.cfg.Title.FontSize,
				Color:    p.cfg.Title.TextColor,
			},
			Encoding: enc,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.logger.Warn().Err(err).Msg("title overlay failed, continuing without title")
		} else {
			current = titled
		}
	}

	output := filepath.Join(outDir, OutputName(p.now()))

	if audio.Path != "" {
		err := p.media.AddAudio(ctx, current, audio.Path, output, ffmpeg.AudioMixOptions{
			Volume:     p.cfg.Audio.BGMVolume,
			FadeOut:    p.cfg.Audio.FadeOut,
			SampleRate: p.cfg.Encoding.AudioSampleRate,
			Bitrate:    p.cfg.Encoding.AudioBitrate,
		})
		if err == nil {
			return output, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.logger.Warn().Err(err).Msg("adding music failed, writing video without music")
	}

	if err := util.CopyFile(current, output); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	return output, nil
}
