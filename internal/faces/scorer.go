package faces

import (
	"context"
	"image"
	"math"

	"github.com/rs/zerolog"
)

// Weights for the terms of a face score
type Weights struct {
	Area       float64
	Expression float64
	Centering  float64
	Confidence float64
}

// DefaultWeights favours big, expressive faces over position and detector certainty.
func DefaultWeights() Weights {
	return Weights{
		Area:       0.35,
		Expression: 0.35,
		Centering:  0.20,
		Confidence: 0.10,
	}
}

// ScoreTerms are the normalized inputs of a face score, each in [0,1].
type ScoreTerms struct {
	AreaRatio  float64
	Expression float64
	Centering  float64
	Confidence float64
}

// Combine applies the weights to precomputed terms. The sum is grouped in
// pairs so that the default weights add up to exactly 1.
func (w Weights) Combine(t ScoreTerms) float64 {
	major := float64(w.Area*t.AreaRatio) + float64(w.Expression*t.Expression)
	minor := float64(w.Centering*t.Centering) + float64(w.Confidence*t.Confidence)
	return major + minor
}

// Terms computes the normalized score inputs of a face in a width x height
// frame whose center is given. The area ratio saturates at a face covering a
// tenth of the frame.
func Terms(face Face, width, height int, center image.Point, expression float64) ScoreTerms {
	frameArea := float64(width * height)
	areaRatio := 0.0
	if frameArea > 0 {
		areaRatio = math.Min(float64(face.Area)/frameArea*10, 1.0)
	}

	faceCenter := image.Point{
		X: face.Box.X + face.Box.Width/2,
		Y: face.Box.Y + face.Box.Height/2,
	}
	dx := float64(faceCenter.X - center.X)
	dy := float64(faceCenter.Y - center.Y)
	halfDiag := math.Hypot(float64(width), float64(height)) / 2

	centering := 0.0
	if halfDiag > 0 {
		centering = math.Max(0, 1-math.Hypot(dx, dy)/halfDiag)
	}

	return ScoreTerms{
		AreaRatio:  areaRatio,
		Expression: expression,
		Centering:  centering,
		Confidence: face.Confidence,
	}
}

// Scorer picks the best moment of a clip by its faces.
type Scorer struct {
	logger      zerolog.Logger
	weights     Weights
	detector    FaceDetector
	expressions ExpressionScorer
}

// NewScorer creates a frame scorer backed by the given model capabilities
func NewScorer(logger zerolog.Logger, weights Weights, detector FaceDetector, expressions ExpressionScorer) *Scorer {
	return &Scorer{
		logger:      logger.With().Str("component", "scorer").Logger(),
		weights:     weights,
		detector:    detector,
		expressions: expressions,
	}
}

// ScoreFace scores one face of a width x height frame.
func (s *Scorer) ScoreFace(face Face, width, height int, center image.Point, expression float64) float64 {
	return s.weights.Combine(Terms(face, width, height, center, expression))
}

// PickBestTimestamp returns the timestamp of the highest scoring face across
// frames. The first frame reaching the maximum wins. Without any face it
// falls back to the middle frame, and to 0 for no frames at all.
func (s *Scorer) PickBestTimestamp(ctx context.Context, frames []Frame) float64 {
	if len(frames) == 0 {
		return 0.0
	}

	bestScore := -1.0
	bestTimestamp := 0.0
	found := false

	for _, frame := range frames {
		if ctx.Err() != nil {
			break
		}

		detected, err := s.detector.DetectFaces(ctx, frame)
		if err != nil {
			s.logger.Warn().Err(err).Float64("timestamp", frame.Timestamp).Msg("face detection failed, skipping frame")
			continue
		}
		if len(detected) == 0 {
			continue
		}

		expression := clampUnit(s.expressions.ExpressionScore(ctx, frame))
		center := image.Point{X: frame.Width / 2, Y: frame.Height / 2}

		for _, face := range detected {
			score := s.ScoreFace(face, frame.Width, frame.Height, center, expression)
			if score > bestScore {
				bestScore = score
				bestTimestamp = frame.Timestamp
				found = true
			}
		}
	}

	if !found {
		mid := frames[len(frames)/2].Timestamp
		s.logger.Debug().Int("frames", len(frames)).Float64("timestamp", mid).Msg("no faces found, using middle frame")
		return mid
	}

	s.logger.Debug().Float64("score", bestScore).Float64("timestamp", bestTimestamp).Msg("best frame selected")
	return bestTimestamp
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
