// Package faces holds the face-driven selection logic: scoring faces within a
// frame, clustering detections into people, and resolving a selection of
// people back to per-video timestamps.
package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
)

// Noise is the cluster ID of a detection that belongs to no person.
const Noise = -1

// BoundingBox is a face rectangle in frame pixels.
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Area returns width times height.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X, b.Y, b.Width, b.Height})
}

// UnmarshalJSON decodes a four element array.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox: expected 4 values, got %d", len(v))
	}
	*b = BoundingBox{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	return nil
}

// Embedding is a face identity vector.
type Embedding []float32

// Face is one detected face, as returned by the detector.
type Face struct {
	Box        BoundingBox
	Area       int
	Confidence float64
}

// EmbeddedFace is a detected face with its identity vector and crop.
type EmbeddedFace struct {
	Box       BoundingBox
	Embedding Embedding
	Image     image.Image
}

// FaceDetection is one face seen at one instant of one video.
type FaceDetection struct {
	VideoPath string
	Timestamp float64
	Box       BoundingBox
	Embedding Embedding
	// Image is the face crop. Detections rebuilt from cache carry a 1x1 placeholder.
	Image     image.Image
	ClusterID int
}

// PersonCluster is one inferred identity.
type PersonCluster struct {
	ID               int
	Representative   image.Image
	FaceCount        int
	VideoAppearances []string
}

// Frame is one decoded-on-demand still from a video.
type Frame struct {
	Timestamp float64
	JPEG      []byte
	Width     int
	Height    int
}

// NewFrame reads the dimensions of a JPEG still without decoding pixels.
func NewFrame(timestamp float64, data []byte) (Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("frame at %.2fs: %w", timestamp, err)
	}
	return Frame{Timestamp: timestamp, JPEG: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode returns the full image.
func (f Frame) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(f.JPEG))
	return img, err
}

// FaceDetector finds faces in a frame.
type FaceDetector interface {
	DetectFaces(ctx context.Context, frame Frame) ([]Face, error)
}

// ExpressionScorer rates how expressive a frame is, in [0,1].
type ExpressionScorer interface {
	ExpressionScore(ctx context.Context, frame Frame) float64
}

// EmbeddingExtractor finds faces and their identity vectors in a frame.
type EmbeddingExtractor interface {
	DetectWithEmbeddings(ctx context.Context, frame Frame) ([]EmbeddedFace, error)
}

// Placeholder is the stand-in image for detections rebuilt from cache.
func Placeholder() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 1, 1))
}

// FilterFaces drops boxes smaller than minW x minH and clamps the rest to a
// width x height frame. Size is checked on the raw box, before clamping.
func FilterFaces(faces []Face, width, height, minW, minH int) []Face {
	out := make([]Face, 0, len(faces))
	for _, f := range faces {
		if f.Box.Width < minW || f.Box.Height < minH {
			continue
		}
		f.Box = ClampBox(f.Box, width, height)
		if f.Box.Width <= 0 || f.Box.Height <= 0 {
			continue
		}
		f.Area = f.Box.Area()
		out = append(out, f)
	}
	return out
}

// ClampBox keeps a box within a width x height frame.
func ClampBox(b BoundingBox, width, height int) BoundingBox {
	x1 := clamp(b.X, 0, width)
	y1 := clamp(b.Y, 0, height)
	x2 := clamp(b.X+b.Width, 0, width)
	y2 := clamp(b.Y+b.Height, 0, height)
	return BoundingBox{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
