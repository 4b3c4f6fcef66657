// Package clips tracks what happened to each source video during a run.
package clips

import (
	"fmt"
	"path/filepath"
	"time"
)

// Status is the result of one video's clip step.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
)

// Stage names the step a skipped video failed at.
type Stage string

const (
	StageFrames    Stage = "frames"
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
)

// Outcome is the explicit result of producing one clip.
type Outcome struct {
	Index int
	Video string
	// Start is where the clip was cut from the source.
	Start time.Duration
	// Path is the normalized clip; empty when skipped.
	Path   string
	Status Status
	Stage  Stage
	Err    error
	// PersonMatch is set when Start came from a selected person's detection.
	PersonMatch bool
}

// Done records a produced clip.
func Done(index int, video string, start time.Duration, path string, personMatch bool) Outcome {
	return Outcome{
		Index:       index,
		Video:       video,
		Start:       start,
		Path:        path,
		Status:      StatusDone,
		PersonMatch: personMatch,
	}
}

// Skipped records a video that yielded no clip.
func Skipped(index int, video string, stage Stage, err error) Outcome {
	return Outcome{Index: index, Video: video, Status: StatusSkipped, Stage: stage, Err: err}
}

// Reason describes why a video was skipped.
func (o Outcome) Reason() string {
	if o.Status != StatusSkipped {
		return ""
	}
	if o.Err == nil {
		return string(o.Stage)
	}
	return fmt.Sprintf("%s: %v", o.Stage, o.Err)
}

// Manager collects outcomes in video order.
type Manager struct {
	outcomes []Outcome
}

// NewManager creates a new clip manager
func NewManager() *Manager {
	return &Manager{
		outcomes: make([]Outcome, 0),
	}
}

// Add records an outcome.
func (m *Manager) Add(o Outcome) {
	m.outcomes = append(m.outcomes, o)
}

// All returns every outcome in the order added.
func (m *Manager) All() []Outcome {
	out := make([]Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}

// Paths returns the produced clips in order, ready for concatenation.
func (m *Manager) Paths() []string {
	var paths []string
	for _, o := range m.outcomes {
		if o.Status == StatusDone {
			paths = append(paths, o.Path)
		}
	}
	return paths
}

// Skipped returns the outcomes that yielded no clip.
func (m *Manager) Skipped() []Outcome {
	var skipped []Outcome
	for _, o := range m.outcomes {
		if o.Status == StatusSkipped {
			skipped = append(skipped, o)
		}
	}
	return skipped
}

// ClipPaths are the raw and normalized file names of video index in dir.
func ClipPaths(dir string, index int) (raw, normalized string) {
	raw = filepath.Join(dir, fmt.Sprintf("raw_%03d.mp4", index))
	normalized = filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", index))
	return raw, normalized
}
