// Package vision provides the face models behind detection, expression
// scoring and identity embedding. Inference runs in a long-lived python
// sidecar; identity vectors can instead come from an in-process ONNX model.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/memoryreel/internal/config"
	"github.com/kikiluvv/memoryreel/internal/faces"
)

// Sidecar is the transport to the face models.
type Sidecar interface {
	Detect(ctx context.Context, jpeg []byte) ([]faces.Face, error)
	Embed(ctx context.Context, jpeg []byte) ([]RawFace, error)
	Expression(ctx context.Context, jpeg []byte) (float64, error)
	Close() error
}

// Embedder turns a face crop into an identity vector.
type Embedder interface {
	Embed(crop image.Image) (faces.Embedding, error)
	Close() error
}

// Model implements the face capabilities used by selection and scanning.
type Model struct {
	logger   zerolog.Logger
	sidecar  Sidecar
	embedder Embedder
	minW     int
	minH     int
}

var (
	_ faces.FaceDetector       = (*Model)(nil)
	_ faces.ExpressionScorer   = (*Model)(nil)
	_ faces.EmbeddingExtractor = (*Model)(nil)
)

// NewModel wraps a sidecar. embedder may be nil, in which case the sidecar's
// own vectors are used.
func NewModel(logger zerolog.Logger, sidecar Sidecar, embedder Embedder, minW, minH int) *Model {
	return &Model{
		logger:   logger.With().Str("component", "vision").Logger(),
		sidecar:  sidecar,
		embedder: embedder,
		minW:     minW,
		minH:     minH,
	}
}

// Open starts the sidecar and, when a model path is configured, the ONNX
// embedder.
func Open(ctx context.Context, logger zerolog.Logger, cfg *config.Config) (*Model, error) {
	worker, err := StartWorker(ctx, cfg.Vision.WorkerCommand)
	if err != nil {
		return nil, err
	}

	var embedder Embedder
	if cfg.Vision.EmbeddingModel != "" {
		arc, err := NewArcFaceEmbedder(logger, ArcFaceOptions{
			ModelPath:      cfg.Vision.EmbeddingModel,
			RuntimeLibrary: cfg.Vision.RuntimeLibrary,
			InputName:      cfg.Vision.EmbeddingInput,
			OutputName:     cfg.Vision.EmbeddingOutput,
			Dim:            cfg.Vision.EmbeddingDim,
		})
		if err != nil {
			worker.Close()
			return nil, err
		}
		embedder = arc
	}

	logger.Debug().Strs("command", cfg.Vision.WorkerCommand).Bool("onnx", embedder != nil).Msg("face models ready")
	return NewModel(logger, worker, embedder, cfg.Detection.MinFaceWidth, cfg.Detection.MinFaceHeight), nil
}

// DetectFaces returns the faces of a frame at least minW x minH in size,
// clamped to the frame.
func (m *Model) DetectFaces(ctx context.Context, frame faces.Frame) ([]faces.Face, error) {
	raw, err := m.sidecar.Detect(ctx, frame.JPEG)
	if err != nil {
		return nil, fmt.Errorf("detect at %.2fs: %w", frame.Timestamp, err)
	}
	return faces.FilterFaces(raw, frame.Width, frame.Height, m.minW, m.minH), nil
}

// ExpressionScore never fails; any error scores 0.
func (m *Model) ExpressionScore(ctx context.Context, frame faces.Frame) float64 {
	score, err := m.sidecar.Expression(ctx, frame.JPEG)
	if err != nil {
		m.logger.Debug().Err(err).Float64("timestamp", frame.Timestamp).Msg("expression scoring failed")
		return 0
	}
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return min(score, 1)
}

// DetectWithEmbeddings returns every face with its identity vector and crop.
// Boxes keep the detector's coordinates; crops are cut from the part of the
// box inside the frame and faces with an empty crop are dropped.
func (m *Model) DetectWithEmbeddings(ctx context.Context, frame faces.Frame) ([]faces.EmbeddedFace, error) {
	raw, err := m.sidecar.Embed(ctx, frame.JPEG)
	if err != nil {
		return nil, fmt.Errorf("embed at %.2fs: %w", frame.Timestamp, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	img, err := frame.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.2fs: %w", frame.Timestamp, err)
	}

	out := make([]faces.EmbeddedFace, 0, len(raw))
	for _, r := range raw {
		rect := image.Rect(r.Box.X, r.Box.Y, r.Box.X+r.Box.Width, r.Box.Y+r.Box.Height).Intersect(img.Bounds())
		if rect.Empty() {
			continue
		}
		crop := imaging.Crop(img, rect)

		vec := r.Embedding
		if m.embedder != nil {
			vec, err = m.embedder.Embed(crop)
			if err != nil {
				return nil, fmt.Errorf("embed crop at %.2fs: %w", frame.Timestamp, err)
			}
		}
		if len(vec) == 0 {
			continue
		}

		out = append(out, faces.EmbeddedFace{Box: r.Box, Embedding: vec, Image: crop})
	}
	return out, nil
}

// Close stops the sidecar and releases the embedder.
func (m *Model) Close() error {
	var errs []error
	if m.sidecar != nil {
		errs = append(errs, m.sidecar.Close())
	}
	if m.embedder != nil {
		errs = append(errs, m.embedder.Close())
	}
	return errors.Join(errs...)
}
