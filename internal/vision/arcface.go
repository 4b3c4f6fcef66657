package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/kikiluvv/memoryreel/internal/faces"
)

const arcFaceSize = 112

// ArcFaceOptions locates an ArcFace style ONNX model.
type ArcFaceOptions struct {
	ModelPath      string
	RuntimeLibrary string
	InputName      string
	OutputName     string
	Dim            int
}

// ArcFaceEmbedder computes identity vectors in process from face crops.
type ArcFaceEmbedder struct {
	mu         sync.Mutex
	logger     zerolog.Logger
	session    *ort.DynamicAdvancedSession
	inputShape ort.Shape
	dim        int
}

// NewArcFaceEmbedder loads the model and initializes the ONNX runtime.
func NewArcFaceEmbedder(logger zerolog.Logger, opts ArcFaceOptions) (*ArcFaceEmbedder, error) {
	if _, err := os.Stat(opts.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("embedding model not found: %s", opts.ModelPath)
	}
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", opts.Dim)
	}

	if opts.RuntimeLibrary != "" {
		ort.SetSharedLibraryPath(opts.RuntimeLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	sess, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		nil,
	)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create embedding session: %w", err)
	}

	logger.Info().
		Str("model", opts.ModelPath).
		Str("input", opts.InputName).
		Str("output", opts.OutputName).
		Int("dim", opts.Dim).
		Msg("embedding model loaded")

	return &ArcFaceEmbedder{
		logger:     logger.With().Str("embedder", "arcface").Logger(),
		session:    sess,
		inputShape: ort.NewShape(1, 3, arcFaceSize, arcFaceSize),
		dim:        opts.Dim,
	}, nil
}

// Embed returns the identity vector of a face crop.
func (a *ArcFaceEmbedder) Embed(crop image.Image) (faces.Embedding, error) {
	input, err := ort.NewTensor(a.inputShape, arcFaceInput(crop))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(a.dim)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	a.mu.Lock()
	err = a.session.Run([]ort.Value{input}, []ort.Value{output})
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("embedding inference failed: %w", err)
	}

	vec := make(faces.Embedding, a.dim)
	copy(vec, output.GetData())
	return vec, nil
}

// arcFaceInput resizes a crop to 112x112 and lays it out as normalized CHW RGB.
func arcFaceInput(crop image.Image) []float32 {
	resized := resize.Resize(arcFaceSize, arcFaceSize, crop, resize.Bilinear)
	bounds := resized.Bounds()

	plane := arcFaceSize * arcFaceSize
	data := make([]float32, 3*plane)
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[idx] = normalizePixel(r)
			data[plane+idx] = normalizePixel(g)
			data[2*plane+idx] = normalizePixel(b)
			idx++
		}
	}
	return data
}

func normalizePixel(v uint32) float32 {
	return (float32(v>>8) - 127.5) / 127.5
}

// Close releases the session and the ONNX environment.
func (a *ArcFaceEmbedder) Close() error {
	a.logger.Debug().Msg("closing embedding session")
	if a.session != nil {
		if err := a.session.Destroy(); err != nil {
			return err
		}
		a.session = nil
	}
	return ort.DestroyEnvironment()
}
