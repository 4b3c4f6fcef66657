package vision

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// maxStderr bounds how much sidecar output is kept for error reports.
const maxStderr = 64 << 10

// SafeCommand wraps exec.Cmd and keeps the tail of its stderr, so a
// sidecar that dies mid-request can still explain itself.
type SafeCommand struct {
	*exec.Cmd
	stderr *tailBuffer
}

// NewSafeCommand prepares a command whose stderr is captured. It is killed
// when ctx is done.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	buf := &tailBuffer{limit: maxStderr}
	cmd.Stderr = buf
	return &SafeCommand{Cmd: cmd, stderr: buf}
}

// Stderr returns what the process has written to stderr so far, trimmed.
func (s *SafeCommand) Stderr() string {
	return strings.TrimSpace(s.stderr.String())
}

// tailBuffer is a goroutine-safe buffer that drops its oldest bytes past limit.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, _ := t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
