package vision

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"

	"github.com/kikiluvv/memoryreel/internal/faces"
)

// Request opcodes understood by the face sidecar.
const (
	opDetect     byte = 'D'
	opEmbed      byte = 'E'
	opExpression byte = 'X'
)

const (
	statusOK    byte = 0
	statusError byte = 1
)

// maxResponse guards against a corrupt length header.
const maxResponse = 256 << 20

// ErrWorkerClosed is returned for calls after Close.
var ErrWorkerClosed = errors.New("face worker is closed")

// RawFace is a face box and identity vector as reported by the sidecar.
type RawFace struct {
	Box       faces.BoundingBox
	Embedding faces.Embedding
}

// PythonWorker talks to the face model sidecar. The child reads requests on
// stdin and writes responses to fd 3, keeping its stdout and stderr free
// for logs. Calls are serialised.
type PythonWorker struct {
	mu     sync.Mutex
	cmd    *SafeCommand
	stdin  io.WriteCloser
	data   io.ReadCloser
	closed bool
}

// StartWorker launches the sidecar. command is the program and its arguments.
func StartWorker(ctx context.Context, command []string) (*PythonWorker, error) {
	if len(command) == 0 {
		return nil, errors.New("face worker command is empty")
	}

	cmd := NewSafeCommand(ctx, command[0], command[1:]...)

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create data pipe: %w", err)
	}
	// fd 3 in the child
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("face worker failed to start: %w", err)
	}

	// only the child holds the write end now
	w.Close()

	return &PythonWorker{cmd: cmd, stdin: stdin, data: r}, nil
}

// Detect asks for face boxes and detector confidences.
func (w *PythonWorker) Detect(ctx context.Context, jpeg []byte) ([]faces.Face, error) {
	body, err := w.call(ctx, opDetect, jpeg)
	if err != nil {
		return nil, err
	}
	return decodeDetections(body)
}

// Embed asks for face boxes with identity vectors.
func (w *PythonWorker) Embed(ctx context.Context, jpeg []byte) ([]RawFace, error) {
	body, err := w.call(ctx, opEmbed, jpeg)
	if err != nil {
		return nil, err
	}
	return decodeEmbeddings(body)
}

// Expression asks for the frame's expression score.
func (w *PythonWorker) Expression(ctx context.Context, jpeg []byte) (float64, error) {
	body, err := w.call(ctx, opExpression, jpeg)
	if err != nil {
		return 0, err
	}
	var score float32
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, &score); err != nil {
		return 0, fmt.Errorf("decode expression: %w", err)
	}
	return float64(score), nil
}

// call sends [len][op][payload] and returns the response body after the
// status byte.
func (w *PythonWorker) call(ctx context.Context, op byte, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWorkerClosed
	}

	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header, uint32(len(payload)+1))
	header[4] = op
	if _, err := w.stdin.Write(header); err != nil {
		return nil, w.crashed("write request", err)
	}
	if _, err := w.stdin.Write(payload); err != nil {
		return nil, w.crashed("write request", err)
	}

	var respLen uint32
	if err := binary.Read(w.data, binary.BigEndian, &respLen); err != nil {
		return nil, w.crashed("read response", err)
	}
	if respLen == 0 || respLen > maxResponse {
		return nil, fmt.Errorf("face worker sent invalid response length %d", respLen)
	}

	resp := make([]byte, respLen)
	if _, err := io.ReadFull(w.data, resp); err != nil {
		return nil, w.crashed("read response", err)
	}

	switch resp[0] {
	case statusOK:
		return resp[1:], nil
	case statusError:
		return nil, decodeWorkerError(resp[1:])
	default:
		return nil, fmt.Errorf("face worker sent unknown status %d", resp[0])
	}
}

// crashed decorates a pipe error with whatever the sidecar printed.
func (w *PythonWorker) crashed(action string, err error) error {
	if w.cmd != nil {
		if logs := w.cmd.Stderr(); logs != "" {
			return fmt.Errorf("face worker %s: %w\n%s", action, err, logs)
		}
	}
	return fmt.Errorf("face worker %s: %w", action, err)
}

// Close stops the sidecar. Closing stdin lets it exit cleanly.
func (w *PythonWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.stdin.Close()
	w.data.Close()
	if w.cmd == nil {
		return nil
	}
	if err := w.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			return w.crashed("exit", err)
		}
	}
	return nil
}

func decodeWorkerError(body []byte) error {
	r := bytes.NewReader(body)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil || int(n) > r.Len() {
		return errors.New("python worker error: malformed error message")
	}
	msg := make([]byte, n)
	io.ReadFull(r, msg)
	return fmt.Errorf("python worker error: %s", msg)
}

type wireBox struct {
	X, Y, W, H int32
}

func (b wireBox) box() faces.BoundingBox {
	return faces.BoundingBox{X: int(b.X), Y: int(b.Y), Width: int(b.W), Height: int(b.H)}
}

// decodeDetections reads [n u32] then n times [box 4xi32][conf f32].
func decodeDetections(body []byte) ([]faces.Face, error) {
	r := bytes.NewReader(body)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	if int64(n)*20 > int64(r.Len()) {
		return nil, fmt.Errorf("decode detections: %d faces do not fit in %d bytes", n, r.Len())
	}

	out := make([]faces.Face, 0, n)
	for i := uint32(0); i < n; i++ {
		var wb wireBox
		var conf float32
		if err := binary.Read(r, binary.BigEndian, &wb); err != nil {
			return nil, fmt.Errorf("decode detection %d: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &conf); err != nil {
			return nil, fmt.Errorf("decode detection %d: %w", i, err)
		}
		b := wb.box()
		out = append(out, faces.Face{Box: b, Area: b.Area(), Confidence: float64(conf)})
	}
	return out, nil
}

// decodeEmbeddings reads [n u32] then n times [box 4xi32][dim u32][dim x f32].
func decodeEmbeddings(body []byte) ([]RawFace, error) {
	r := bytes.NewReader(body)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}

	out := make([]RawFace, 0, min(int(n), 64))
	for i := uint32(0); i < n; i++ {
		var wb wireBox
		var dim uint32
		if err := binary.Read(r, binary.BigEndian, &wb); err != nil {
			return nil, fmt.Errorf("decode embedding %d: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &dim); err != nil {
			return nil, fmt.Errorf("decode embedding %d: %w", i, err)
		}
		if int64(dim)*4 > int64(r.Len()) {
			return nil, fmt.Errorf("decode embedding %d: dimension %d exceeds payload", i, dim)
		}
		vec := make(faces.Embedding, dim)
		if err := binary.Read(r, binary.BigEndian, []float32(vec)); err != nil {
			return nil, fmt.Errorf("decode embedding %d: %w", i, err)
		}
		for _, v := range vec {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, fmt.Errorf("decode embedding %d: non-finite value", i)
			}
		}
		out = append(out, RawFace{Box: wb.box(), Embedding: vec})
	}
	return out, nil
}
