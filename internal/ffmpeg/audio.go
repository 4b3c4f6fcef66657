package ffmpeg

import (
	"context"
	"errors"
	"fmt"
)

// AudioMixOptions controls how background music is laid under the video.
type AudioMixOptions struct {
	// Volume scales the music before mixing.
	Volume float64
	// FadeOut is the fade length at the end of the video, in seconds.
	FadeOut      float64
	SampleRate   int
	Bitrate      string
	ProgressFunc ProgressFunc
}

// AddAudio lays looped background music under video. The music is cut to
// the video length, faded out and attenuated. When the video has its own
// sound the two are mixed, otherwise the music becomes the only track.
// Video is stream-copied.
func (e *Executor) AddAudio(ctx context.Context, video, audio, output string, opts AudioMixOptions) error {
	if video == "" || audio == "" || output == "" {
		return errors.New("video, audio and output paths are required")
	}

	info, err := e.ProbeVideo(ctx, video)
	if err != nil {
		return fmt.Errorf("add audio: %w", err)
	}

	e.logger.Info().
		Str("audio", audio).
		Float64("volume", opts.Volume).
		Bool("mix", info.HasAudio).
		Msg("adding background music")

	runOpts := RunOptions{
		Args:            audioMixArgs(video, audio, output, info, opts),
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("audio mix")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("audio mix failed: %w", err)
	}
	return nil
}

func audioMixArgs(video, audio, output string, info *VideoInfo, opts AudioMixOptions) []string {
	bgm := NewFilterBuilder().
		ASetPTS().
		AFadeOut(info.Duration.Seconds(), opts.FadeOut).
		Volume(opts.Volume)

	args := []string{
		"-i", video,
		"-stream_loop", "-1",
		"-i", audio,
	}

	var graph string
	if info.HasAudio {
		mix := NewFilterBuilder().
			Custom("amix=inputs=2:duration=first:dropout_transition=0").
			AResample(opts.SampleRate)
		graph = fmt.Sprintf("[1:a]%s[bgm];[0:a][bgm]%s[aout]", bgm.Build(), mix.Build())
	} else {
		graph = fmt.Sprintf("[1:a]%s[aout]", bgm.AResample(opts.SampleRate).Build())
	}

	args = append(args,
		"-filter_complex", graph,
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", DefaultAudioCodec,
		"-b:a", opts.Bitrate,
	)
	if !info.HasAudio {
		args = append(args, "-shortest")
	}
	return append(args, output)
}
