package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/memoryreel/internal/cache"
	"github.com/kikiluvv/memoryreel/internal/clips"
	"github.com/kikiluvv/memoryreel/internal/config"
	"github.com/kikiluvv/memoryreel/internal/faces"
	"github.com/kikiluvv/memoryreel/internal/ffmpeg"
	"github.com/kikiluvv/memoryreel/internal/library"
)

var runDay = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// fakeMedia produces placeholder files and frames keyed by video base name.
type fakeMedia struct {
	durations map[string]float64
	framesErr map[string]error
	clipErr   map[string]error
	normErr   map[string]error
	concatErr error
	titleErr  error
	audioErr  error

	intervals map[string][]float64
	starts    map[string]time.Duration
	rawSource map[string]string
	calls     []string
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		durations: map[string]float64{},
		framesErr: map[string]error{},
		clipErr:   map[string]error{},
		normErr:   map[string]error{},
		intervals: map[string][]float64{},
		starts:    map[string]time.Duration{},
		rawSource: map[string]string{},
	}
}

func (m *fakeMedia) ExtractFrames(ctx context.Context, input string, interval float64) ([]faces.Frame, error) {
	name := filepath.Base(input)
	m.intervals[name] = append(m.intervals[name], interval)
	if err := m.framesErr[name]; err != nil {
		return nil, err
	}
	duration, ok := m.durations[name]
	if !ok {
		duration = 6
	}
	var frames []faces.Frame
	for i := 0; float64(i)*interval < duration; i++ {
		frames = append(frames, faces.Frame{Timestamp: float64(i) * interval, JPEG: []byte(name), Width: 100, Height: 100})
	}
	return frames, nil
}

func (m *fakeMedia) ExtractClip(ctx context.Context, input string, opts ffmpeg.ClipOptions) error {
	name := filepath.Base(input)
	m.calls = append(m.calls, "extract "+name)
	if err := m.clipErr[name]; err != nil {
		return err
	}
	m.starts[name] = opts.Start
	m.rawSource[opts.Output] = name
	return os.WriteFile(opts.Output, []byte("raw "+name), 0644)
}

func (m *fakeMedia) NormalizeClip(ctx context.Context, input, output string, opts ffmpeg.NormalizeOptions) error {
	name := m.rawSource[input]
	m.calls = append(m.calls, "normalize "+name)
	if opts.Encoding.Width != 540 || opts.Encoding.Height != 960 {
		return errors.New("unexpected geometry")
	}
	if err := m.normErr[name]; err != nil {
		return err
	}
	return os.WriteFile(output, []byte(name), 0644)
}

func (m *fakeMedia) Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error {
	m.calls = append(m.calls, "concat")
	if m.concatErr != nil {
		return m.concatErr
	}
	var joined []string
	for _, in := range opts.Inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		joined = append(joined, string(data))
	}
	return os.WriteFile(opts.Output, []byte(strings.Join(joined, "+")), 0644)
}

func (m *fakeMedia) AddTitleOverlay(ctx context.Context, input, output string, opts ffmpeg.TitleOptions) error {
	m.calls = append(m.calls, "title "+opts.Title.Text)
	if m.titleErr != nil {
		return m.titleErr
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append([]byte("titled:"), data...), 0644)
}

func (m *fakeMedia) AddAudio(ctx context.Context, video, audio, output string, opts ffmpeg.AudioMixOptions) error {
	m.calls = append(m.calls, "audio "+filepath.Base(audio))
	if m.audioErr != nil {
		return m.audioErr
	}
	data, err := os.ReadFile(video)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append(data, []byte("+music")...), 0644)
}

// fakeModel answers by video base name, carried in the frame bytes, and timestamp.
type fakeModel struct {
	faces     map[string]map[float64][]faces.Face
	embedded  map[string]map[float64][]faces.EmbeddedFace
	scanCalls int
}

func (m *fakeModel) DetectFaces(ctx context.Context, frame faces.Frame) ([]faces.Face, error) {
	return m.faces[string(frame.JPEG)][frame.Timestamp], nil
}

func (m *fakeModel) ExpressionScore(ctx context.Context, frame faces.Frame) float64 {
	return 0
}

func (m *fakeModel) DetectWithEmbeddings(ctx context.Context, frame faces.Frame) ([]faces.EmbeddedFace, error) {
	m.scanCalls++
	return m.embedded[string(frame.JPEG)][frame.Timestamp], nil
}

func embedded(x, y, size int, emb ...float32) faces.EmbeddedFace {
	return faces.EmbeddedFace{
		Box:       faces.BoundingBox{X: x, Y: y, Width: size, Height: size},
		Embedding: emb,
		Image:     image.NewRGBA(image.Rect(0, 0, size, size)),
	}
}

// twoPeople puts person A in a.mp4 and b.mp4 and person B in b.mp4 and c.mov.
func twoPeople() *fakeModel {
	return &fakeModel{
		faces: map[string]map[float64][]faces.Face{},
		embedded: map[string]map[float64][]faces.EmbeddedFace{
			"a.mp4": {
				0: {embedded(10, 10, 20, 1, 0, 0)},
				2: {embedded(10, 10, 50, 0.99, 0.05, 0)},
			},
			"b.mp4": {
				0: {embedded(0, 0, 30, 1, 0.02, 0)},
				2: {embedded(0, 0, 30, 0, 1, 0)},
			},
			"c.mov": {
				4: {embedded(5, 5, 40, 0, 0.98, 0.1)},
			},
		},
	}
}

type fixture struct {
	cfg    *config.Config
	input  string
	output string
	media  *fakeMedia
	model  *fakeModel
}

func newFixture(t *testing.T, model *fakeModel, videos ...string) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.TempDir = filepath.Join(t.TempDir(), "work")
	cfg.Audio.BGMFolder = filepath.Join(t.TempDir(), "no-bgm")
	cfg.Audio.DefaultPath = ""

	input := t.TempDir()
	old := time.Now().Add(-time.Hour)
	for _, v := range videos {
		path := filepath.Join(input, v)
		if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}

	if model == nil {
		model = &fakeModel{}
	}
	return &fixture{cfg: cfg, input: input, output: t.TempDir(), media: newFakeMedia(), model: model}
}

func (f *fixture) pipeline(prompter *Prompter) *Pipeline {
	p := New(zerolog.Nop(), f.cfg, f.media, f.model, prompter, nil)
	p.now = func() time.Time { return runDay }
	return p
}

func (f *fixture) options() Options {
	return Options{InputDir: f.input, OutputDir: f.output}
}

func assertWorkDirRemoved(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.TempDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir left behind: %v", entries)
	}
}

func starts(outcomes []clips.Outcome) map[string]time.Duration {
	out := map[string]time.Duration{}
	for _, o := range outcomes {
		if o.Status == clips.StatusDone {
			out[filepath.Base(o.Video)] = o.Start
		}
	}
	return out
}

func TestRunNormalMode(t *testing.T) {
	model := &fakeModel{faces: map[string]map[float64][]faces.Face{
		"a.mp4": {2: {{Box: faces.BoundingBox{X: 40, Y: 40, Width: 20, Height: 20}, Area: 400, Confidence: 0.9}}},
	}}
	f := newFixture(t, model, "b.mp4", "a.mp4", "c.mov", "notes.txt")
	f.media.framesErr["c.mov"] = errors.New("corrupt")

	opts := f.options()
	opts.Title = "Summer"
	result, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("expected an outcome per video, got %+v", result.Outcomes)
	}
	wantStarts := map[string]time.Duration{"a.mp4": 2 * time.Second, "b.mp4": 3 * time.Second}
	if got := starts(result.Outcomes); !reflect.DeepEqual(got, wantStarts) {
		t.Errorf("expected starts %v, got %v", wantStarts, got)
	}
	skipped := result.Outcomes[2]
	if skipped.Status != clips.StatusSkipped || skipped.Stage != clips.StageFrames {
		t.Errorf("expected c.mov skipped at frames, got %+v", skipped)
	}
	if result.ClipCount() != 2 {
		t.Errorf("expected 2 clips, got %d", result.ClipCount())
	}

	if got := f.media.intervals["a.mp4"]; !reflect.DeepEqual(got, []float64{1.0}) {
		t.Errorf("normal mode should sample at the detection interval, got %v", got)
	}

	wantOutput := filepath.Join(f.output, "20260314_highlight_video.mp4")
	if result.Output != wantOutput {
		t.Errorf("expected output %s, got %s", wantOutput, result.Output)
	}
	data, err := os.ReadFile(wantOutput)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if string(data) != "titled:a.mp4+b.mp4" {
		t.Errorf("expected clips in name order with title, got %q", data)
	}
	if result.Audio.Source != library.AudioNone {
		t.Errorf("expected no audio, got %+v", result.Audio)
	}
	assertWorkDirRemoved(t, f.cfg)
}

func TestRunDefaultsOutputToInput(t *testing.T) {
	f := newFixture(t, nil, "a.mp4")
	opts := f.options()
	opts.OutputDir = ""

	result, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if filepath.Dir(result.Output) != f.input {
		t.Errorf("expected output in input folder, got %s", result.Output)
	}
}

func TestRunLibraryErrors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.pipeline(nil).Run(context.Background(), f.options())
	if !errors.Is(err, library.ErrNoVideos) {
		t.Errorf("expected ErrNoVideos, got %v", err)
	}

	opts := f.options()
	opts.InputDir = filepath.Join(f.input, "missing")
	_, err = f.pipeline(nil).Run(context.Background(), opts)
	if !errors.Is(err, library.ErrFolderNotFound) {
		t.Errorf("expected ErrFolderNotFound, got %v", err)
	}
}

func TestRunNoClips(t *testing.T) {
	f := newFixture(t, nil, "a.mp4", "b.mp4", "c.mp4")
	f.media.framesErr["a.mp4"] = errors.New("unreadable")
	f.media.clipErr["b.mp4"] = errors.New("cut failed")
	f.media.normErr["c.mp4"] = errors.New("scale failed")

	result, err := f.pipeline(nil).Run(context.Background(), f.options())
	if !errors.Is(err, ErrNoClips) {
		t.Fatalf("expected ErrNoClips, got %v", err)
	}

	wantStages := []clips.Stage{clips.StageFrames, clips.StageExtract, clips.StageNormalize}
	for i, o := range result.Outcomes {
		if o.Status != clips.StatusSkipped || o.Stage != wantStages[i] || o.Err == nil {
			t.Errorf("outcome %d: expected skip at %s, got %+v", i, wantStages[i], o)
		}
	}
	for _, call := range f.media.calls {
		if call == "concat" {
			t.Error("nothing should be joined without clips")
		}
	}
	assertWorkDirRemoved(t, f.cfg)
}

func TestRunFaceModeWithIDs(t *testing.T) {
	f := newFixture(t, twoPeople(), "a.mp4", "b.mp4", "c.mov")
	opts := f.options()
	opts.SelectFaces = true
	opts.FaceIDs = "0"

	result, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Clusters) != 2 || result.Clusters[0].FaceCount != 3 || result.Clusters[1].FaceCount != 2 {
		t.Fatalf("expected people of 3 and 2 faces, got %+v", result.Clusters)
	}
	if !reflect.DeepEqual(result.SelectedIDs, []int{0}) {
		t.Errorf("expected selection [0], got %v", result.SelectedIDs)
	}
	if result.UsedCache {
		t.Error("first run cannot use the cache")
	}

	wantStarts := map[string]time.Duration{"a.mp4": 2 * time.Second, "b.mp4": 0, "c.mov": 3 * time.Second}
	if got := starts(result.Outcomes); !reflect.DeepEqual(got, wantStarts) {
		t.Errorf("expected starts %v, got %v", wantStarts, got)
	}
	matches := []bool{true, true, false}
	for i, o := range result.Outcomes {
		if o.PersonMatch != matches[i] {
			t.Errorf("%s: expected person match %v", filepath.Base(o.Video), matches[i])
		}
	}

	if got := f.media.intervals["a.mp4"]; !reflect.DeepEqual(got, []float64{2.0}) {
		t.Errorf("a.mp4 should only be sampled by the scan, got %v", got)
	}
	if got := f.media.intervals["c.mov"]; !reflect.DeepEqual(got, []float64{2.0, 1.0}) {
		t.Errorf("c.mov should be scanned then scored, got %v", got)
	}

	for _, id := range []int{0, 1} {
		if _, err := os.Stat(cache.PreviewPath(result.PreviewDir, id)); err != nil {
			t.Errorf("preview %d missing: %v", id, err)
		}
	}
	store := f.pipeline(nil).Store(f.output)
	if !store.IsValid(f.input) {
		t.Error("cache should be valid right after the scan")
	}
}

func TestRunFaceModeReusesCache(t *testing.T) {
	f := newFixture(t, twoPeople(), "a.mp4", "b.mp4", "c.mov")
	opts := f.options()
	opts.SelectFaces = true
	opts.FaceIDs = "0"

	first, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	scans := f.model.scanCalls

	opts.AssumeYes = true
	second, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !second.UsedCache {
		t.Error("expected cached scan to be used")
	}
	if f.model.scanCalls != scans {
		t.Errorf("cached run should not scan, calls went from %d to %d", scans, f.model.scanCalls)
	}
	if !reflect.DeepEqual(starts(first.Outcomes), starts(second.Outcomes)) {
		t.Errorf("cached run picked different moments: %v vs %v", starts(first.Outcomes), starts(second.Outcomes))
	}

	opts.Rescan = true
	third, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("rescan failed: %v", err)
	}
	if third.UsedCache || f.model.scanCalls == scans {
		t.Error("rescan should ignore the cache")
	}
}

func TestRunFaceModeCacheWithRelativeInput(t *testing.T) {
	f := newFixture(t, twoPeople(), "a.mp4", "b.mp4", "c.mov")
	opts := f.options()
	opts.SelectFaces = true
	opts.FaceIDs = "0"

	if _, err := f.pipeline(nil).Run(context.Background(), opts); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	scans := f.model.scanCalls

	testChdir(t, filepath.Dir(f.input))
	opts.InputDir = filepath.Base(f.input)
	opts.AssumeYes = true
	result, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("relative run failed: %v", err)
	}
	if !result.UsedCache || f.model.scanCalls != scans {
		t.Fatal("expected the cached scan to be reused")
	}

	matches := map[string]bool{"a.mp4": true, "b.mp4": true, "c.mov": false}
	for _, o := range result.Outcomes {
		name := filepath.Base(o.Video)
		if o.PersonMatch != matches[name] {
			t.Errorf("%s: expected person match %v from the cached detections", name, matches[name])
		}
	}
}

func TestRunFaceModeDeclinedCache(t *testing.T) {
	f := newFixture(t, twoPeople(), "a.mp4", "b.mp4", "c.mov")
	opts := f.options()
	opts.SelectFaces = true
	opts.FaceIDs = "all"

	if _, err := f.pipeline(nil).Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	scans := f.model.scanCalls

	var out bytes.Buffer
	prompter := NewPrompter(strings.NewReader("n\n"), &out)
	result, err := f.pipeline(prompter).Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.UsedCache || f.model.scanCalls == scans {
		t.Error("declining the cache should rescan")
	}
	if !strings.Contains(out.String(), "People:  2") {
		t.Errorf("expected cache summary, got %q", out.String())
	}
	if !reflect.DeepEqual(result.SelectedIDs, []int{0, 1}) {
		t.Errorf("expected all people, got %v", result.SelectedIDs)
	}
}

func TestRunFaceModePrompt(t *testing.T) {
	f := newFixture(t, twoPeople(), "a.mp4", "b.mp4", "c.mov")
	opts := f.options()
	opts.SelectFaces = true

	var out bytes.Buffer
	prompter := NewPrompter(strings.NewReader("9\n1\n"), &out)
	result, err := f.pipeline(prompter).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !reflect.DeepEqual(result.SelectedIDs, []int{1}) {
		t.Errorf("expected [1] after re-ask, got %v", result.SelectedIDs)
	}
	for _, want := range []string{
		"person_0.jpg - 3 detections (2 videos)",
		"person_1.jpg - 2 detections (2 videos)",
		"Valid IDs: [0 1]",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in prompt output:\n%s", want, out.String())
		}
	}

	wantStarts := map[string]time.Duration{"a.mp4": 3 * time.Second, "b.mp4": 2 * time.Second, "c.mov": 4 * time.Second}
	if got := starts(result.Outcomes); !reflect.DeepEqual(got, wantStarts) {
		t.Errorf("expected starts %v, got %v", wantStarts, got)
	}
}

func TestRunFaceModeSelectionErrors(t *testing.T) {
	f := newFixture(t, twoPeople(), "a.mp4", "b.mp4", "c.mov")
	opts := f.options()
	opts.SelectFaces = true

	_, err := f.pipeline(nil).Run(context.Background(), opts)
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection without prompter, got %v", err)
	}

	opts.FaceIDs = "5"
	_, err = f.pipeline(nil).Run(context.Background(), opts)
	if !errors.Is(err, faces.ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection, got %v", err)
	}

	opts.FaceIDs = ""
	prompter := NewPrompter(strings.NewReader("abc\n"), &bytes.Buffer{})
	_, err = f.pipeline(prompter).Run(context.Background(), opts)
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection when input ends, got %v", err)
	}
}

func TestRunFaceModeFatal(t *testing.T) {
	t.Run("no faces", func(t *testing.T) {
		f := newFixture(t, &fakeModel{}, "a.mp4")
		opts := f.options()
		opts.SelectFaces = true
		if _, err := f.pipeline(nil).Run(context.Background(), opts); !errors.Is(err, ErrNoFaces) {
			t.Errorf("expected ErrNoFaces, got %v", err)
		}
	})

	t.Run("no clusters", func(t *testing.T) {
		model := &fakeModel{embedded: map[string]map[float64][]faces.EmbeddedFace{
			"a.mp4": {0: {embedded(0, 0, 30, 1, 0)}},
		}}
		f := newFixture(t, model, "a.mp4")
		opts := f.options()
		opts.SelectFaces = true
		if _, err := f.pipeline(nil).Run(context.Background(), opts); !errors.Is(err, ErrNoClusters) {
			t.Errorf("expected ErrNoClusters, got %v", err)
		}
	})
}

func TestRunScanOnly(t *testing.T) {
	f := newFixture(t, twoPeople(), "a.mp4", "b.mp4", "c.mov")
	opts := f.options()
	opts.ScanOnly = true

	result, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Clusters) != 2 || result.Output != "" {
		t.Errorf("expected clusters only, got %+v", result)
	}
	if len(f.media.calls) != 0 {
		t.Errorf("scan should not cut clips, got %v", f.media.calls)
	}
	if _, err := os.Stat(filepath.Join(f.output, f.cfg.Faces.CacheFile)); err != nil {
		t.Errorf("cache not written: %v", err)
	}
}

func TestFinalizeAudio(t *testing.T) {
	t.Run("music from bgm folder", func(t *testing.T) {
		f := newFixture(t, nil, "a.mp4")
		f.cfg.Audio.BGMFolder = t.TempDir()
		os.WriteFile(filepath.Join(f.cfg.Audio.BGMFolder, "song.mp3"), []byte("x"), 0644)

		result, err := f.pipeline(nil).Run(context.Background(), f.options())
		if err != nil {
			t.Fatal(err)
		}
		if result.Audio.Source != library.AudioFolder {
			t.Errorf("expected bgm folder music, got %+v", result.Audio)
		}
		data, _ := os.ReadFile(result.Output)
		if string(data) != "a.mp4+music" {
			t.Errorf("expected mixed output, got %q", data)
		}
	})

	t.Run("mix failure copies video", func(t *testing.T) {
		f := newFixture(t, nil, "a.mp4")
		f.cfg.Audio.BGMFolder = t.TempDir()
		os.WriteFile(filepath.Join(f.cfg.Audio.BGMFolder, "song.mp3"), []byte("x"), 0644)
		f.media.audioErr = errors.New("amix failed")

		result, err := f.pipeline(nil).Run(context.Background(), f.options())
		if err != nil {
			t.Fatalf("mix failure should not be fatal: %v", err)
		}
		data, _ := os.ReadFile(result.Output)
		if string(data) != "a.mp4" {
			t.Errorf("expected plain copy, got %q", data)
		}
	})

	t.Run("missing explicit audio", func(t *testing.T) {
		f := newFixture(t, nil, "a.mp4")
		opts := f.options()
		opts.AudioPath = filepath.Join(f.input, "nope.mp3")

		result, err := f.pipeline(nil).Run(context.Background(), opts)
		if err != nil {
			t.Fatal(err)
		}
		if result.Audio.Missing == "" || result.Audio.Path != "" {
			t.Errorf("expected missing audio, got %+v", result.Audio)
		}
		for _, call := range f.media.calls {
			if strings.HasPrefix(call, "audio") {
				t.Error("no music should be mixed")
			}
		}
	})
}

func TestFinalizeTitleFailureContinues(t *testing.T) {
	f := newFixture(t, nil, "a.mp4")
	f.media.titleErr = errors.New("no drawtext")
	opts := f.options()
	opts.Title = "Trip"

	result, err := f.pipeline(nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("title failure should not be fatal: %v", err)
	}
	data, _ := os.ReadFile(result.Output)
	if string(data) != "a.mp4" {
		t.Errorf("expected untitled output, got %q", data)
	}
}

func TestFinalizeConcatFailureIsFatal(t *testing.T) {
	f := newFixture(t, nil, "a.mp4", "b.mp4")
	f.media.concatErr = errors.New("demuxer failed")

	_, err := f.pipeline(nil).Run(context.Background(), f.options())
	if err == nil || !strings.Contains(err.Error(), "demuxer failed") {
		t.Errorf("expected concat error, got %v", err)
	}
	assertWorkDirRemoved(t, f.cfg)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, nil, "a.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline(nil).Run(ctx, f.options())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName(runDay); got != "20260314_highlight_video.mp4" {
		t.Errorf("unexpected name %s", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"y", true},
	}

	for _, tt := range tests {
		p := NewPrompter(strings.NewReader(tt.input), &bytes.Buffer{})
		got, err := p.Confirm("ok?")
		if err != nil {
			t.Fatalf("Confirm(%q) failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	p := NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	if _, err := p.Confirm("ok?"); err == nil {
		t.Error("expected error at end of input")
	}
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
