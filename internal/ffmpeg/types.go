package ffmpeg

import (
	"io"
	"time"

	"github.com/kikiluvv/memoryreel/internal/config"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	Bitrate    int64
	VideoCodec string
	HasVideo   bool
	HasAudio   bool
	AudioCodec string
	// Rotation is the clockwise display rotation in degrees: 0, 90, 180 or 270.
	Rotation int
}

// DisplaySize is the frame size after rotation is applied.
func (v *VideoInfo) DisplaySize() (int, int) {
	if v.Rotation == 90 || v.Rotation == 270 {
		return v.Height, v.Width
	}
	return v.Width, v.Height
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// ProgressFunc is called with each completed progress block.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
	// Stdout receives the raw output stream instead of the log handler.
	Stdout io.Writer
}

// Encoding is the delivery format every rendered segment shares, so the
// final concat can stream-copy.
type Encoding struct {
	Width           int
	Height          int
	FPS             string
	VideoBitrate    string
	Profile         string
	Preset          string
	PixelFormat     string
	AudioSampleRate int
	AudioBitrate    string
}

// Default encoding settings
const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
)

// videoArgs are the output options of a delivery-format video stream.
func (enc Encoding) videoArgs() []string {
	return []string{
		"-c:v", DefaultVideoCodec,
		"-b:v", enc.VideoBitrate,
		"-preset", enc.Preset,
		"-profile:v", enc.Profile,
		"-pix_fmt", enc.PixelFormat,
	}
}

// audioArgs are the output options of a delivery-format audio stream.
func (enc Encoding) audioArgs() []string {
	return []string{"-c:a", DefaultAudioCodec, "-b:a", enc.AudioBitrate}
}

// NewEncoding builds the delivery format from configuration.
func NewEncoding(out config.OutputConfig, enc config.EncodingConfig) Encoding {
	return Encoding{
		Width:           out.Width,
		Height:          out.Height,
		FPS:             out.FPS,
		VideoBitrate:    enc.VideoBitrate,
		Profile:         enc.Profile,
		Preset:          enc.Preset,
		PixelFormat:     enc.PixelFormat,
		AudioSampleRate: enc.AudioSampleRate,
		AudioBitrate:    enc.AudioBitrate,
	}
}
