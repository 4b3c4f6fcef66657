package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/kikiluvv/memoryreel/internal/clips"
	"github.com/kikiluvv/memoryreel/internal/faces"
	"github.com/kikiluvv/memoryreel/internal/ffmpeg"
	"github.com/kikiluvv/memoryreel/internal/library"
)

var (
	// ErrNoFaces is returned when a face scan finds nobody in any video.
	ErrNoFaces = errors.New("no faces detected in any video")
	// ErrNoClusters is returned when faces were found but no person could be formed.
	ErrNoClusters = errors.New("no person could be identified; too few faces detected")
	// ErrNoClips is returned when every video was skipped.
	ErrNoClips = errors.New("no clips could be produced")
	// ErrNoSelection is returned when face mode has neither IDs nor a prompt.
	ErrNoSelection = errors.New("no person selected")
)

// MediaTools is the media work the pipeline delegates to ffmpeg.
type MediaTools interface {
	ExtractFrames(ctx context.Context, input string, interval float64) ([]faces.Frame, error)
	ExtractClip(ctx context.Context, input string, opts ffmpeg.ClipOptions) error
	NormalizeClip(ctx context.Context, input, output string, opts ffmpeg.NormalizeOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
	AddTitleOverlay(ctx context.Context, input, output string, opts ffmpeg.TitleOptions) error
	AddAudio(ctx context.Context, video, audio, output string, opts ffmpeg.AudioMixOptions) error
}

// FaceModel is the face capability the pipeline needs in both modes.
type FaceModel interface {
	faces.FaceDetector
	faces.ExpressionScorer
	faces.EmbeddingExtractor
}

var _ MediaTools = (*ffmpeg.Executor)(nil)

// Options configures one run.
type Options struct {
	InputDir string
	// OutputDir defaults to InputDir.
	OutputDir string
	// AudioPath overrides background music discovery.
	AudioPath string
	Title     string

	SelectFaces bool
	// FaceIDs is a selection such as "0,2" or "all"; empty means prompt.
	FaceIDs string
	Rescan  bool
	// AssumeYes accepts a valid cache without asking.
	AssumeYes bool
	// ScanOnly stops after the face scan, before any clip is cut.
	ScanOnly bool
}

// Result reports what a run produced.
type Result struct {
	Output      string
	Outcomes    []clips.Outcome
	Audio       library.AudioChoice
	Clusters    []faces.PersonCluster
	SelectedIDs []int
	UsedCache   bool
	// PreviewDir holds person_<id>.jpg for every cluster in face mode.
	PreviewDir string
	Elapsed    time.Duration
}

// ClipCount is the number of clips in the final video.
func (r *Result) ClipCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == clips.StatusDone {
			n++
		}
	}
	return n
}
