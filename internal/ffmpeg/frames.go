package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/kikiluvv/memoryreel/internal/faces"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const maxFrameSize = 64 << 20

// ExtractFrames samples one JPEG still every interval seconds, starting at 0,
// in a single decoding pass. Frame i is stamped i*interval and stills at or
// past the probed duration are dropped.
func (e *Executor) ExtractFrames(ctx context.Context, input string, interval float64) ([]faces.Frame, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %v", interval)
	}

	info, err := e.ProbeVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	duration := info.Duration.Seconds()

	var out bytes.Buffer
	err = e.Run(ctx, RunOptions{
		Args:   frameArgs(input, interval),
		Stdout: &out,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("frame extraction")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}

	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 1<<20), maxFrameSize)
	scanner.Split(SplitJpeg)

	var frames []faces.Frame
	for i := 0; scanner.Scan(); i++ {
		ts := float64(i) * interval
		if ts >= duration {
			break
		}
		data := make([]byte, len(scanner.Bytes()))
		copy(data, scanner.Bytes())

		frame, err := faces.NewFrame(ts, data)
		if err != nil {
			e.logger.Debug().Err(err).Str("input", input).Msg("skipping undecodable frame")
			continue
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("frame scanner failed: %w", err)
	}

	e.logger.Debug().
		Str("input", input).
		Int("frames", len(frames)).
		Float64("interval", interval).
		Msg("frames extracted")
	return frames, nil
}

func frameArgs(input string, interval float64) []string {
	return []string{
		"-i", input,
		"-vf", "fps=1/" + strconv.FormatFloat(interval, 'f', -1, 64),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"-",
	}
}

// SplitJpeg is a bufio.SplitFunc that yields whole JPEG images from an
// MJPEG stream, using the SOI and EOI markers.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}
