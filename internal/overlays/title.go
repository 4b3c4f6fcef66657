// Package overlays lays out the opening title of a highlight video as
// ffmpeg drawtext filters.
package overlays

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kikiluvv/memoryreel/pkg/util"
)

// LineSpacing is the line height as a multiple of the font size.
const LineSpacing = 1.5

// ErrEmptyTitle is returned when the title has no visible text.
var ErrEmptyTitle = errors.New("title text is empty")

// Title is a centered multi-line caption shown for the first Duration
// seconds of the video.
type Title struct {
	Text     string
	Duration float64
	FontPath string
	FontSize int
	// Color is #RRGGBB or RRGGBB.
	Color string
}

// Lines splits the text on newlines. A literal backslash-n typed on the
// command line counts as a newline too.
func (t Title) Lines() []string {
	text := strings.ReplaceAll(t.Text, `\n`, "\n")
	return strings.Split(text, "\n")
}

// LineHeight is the vertical advance between lines in pixels.
func (t Title) LineHeight() float64 {
	return float64(t.FontSize) * LineSpacing
}

// Validate rejects titles that cannot be drawn.
func (t Title) Validate() error {
	if strings.TrimSpace(strings.ReplaceAll(t.Text, `\n`, "")) == "" {
		return ErrEmptyTitle
	}
	if t.Duration <= 0 {
		return fmt.Errorf("title duration must be positive, got %v", t.Duration)
	}
	if t.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %d", t.FontSize)
	}
	if t.FontPath == "" {
		return errors.New("font path is required")
	}
	if _, err := FontColor(t.Color); err != nil {
		return err
	}
	return nil
}

// FontColor converts #RRGGBB into the 0xRRGGBB form drawtext accepts.
func FontColor(color string) (string, error) {
	hex := strings.TrimPrefix(color, "#")
	if len(hex) != 6 {
		return "", fmt.Errorf("invalid text color %q", color)
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return "", fmt.Errorf("invalid text color %q", color)
		}
	}
	return "0x" + strings.ToUpper(hex), nil
}

// Filters returns one drawtext filter per non-empty line. textFiles[i] holds
// the text of line i; reading text from files keeps user input out of
// filter escaping. Lines are centered horizontally and the block vertically,
// with a 2px black shadow.
func (t Title) Filters(textFiles []string) ([]string, error) {
	lines := t.Lines()
	if len(textFiles) != len(lines) {
		return nil, fmt.Errorf("expected %d text files, got %d", len(lines), len(textFiles))
	}
	color, err := FontColor(t.Color)
	if err != nil {
		return nil, err
	}

	lineHeight := t.LineHeight()
	total := float64(len(lines)) * lineHeight
	font := EscapeFilterPath(t.FontPath)
	enable := quote(fmt.Sprintf("lt(t,%s)", util.FormatSeconds(t.Duration)))

	filters := make([]string, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		y := fmt.Sprintf("(h-%s)/2+%s", trimFloat(total), trimFloat(float64(i)*lineHeight))
		filters = append(filters, strings.Join([]string{
			"drawtext=fontfile=" + font,
			"textfile=" + EscapeFilterPath(textFiles[i]),
			"expansion=none",
			fmt.Sprintf("fontsize=%d", t.FontSize),
			"fontcolor=" + color,
			"x=(w-text_w)/2",
			"y=" + y,
			"enable=" + enable,
			"shadowcolor=black",
			"shadowx=2",
			"shadowy=2",
		}, ":"))
	}
	return filters, nil
}

// EscapeFilterPath makes a file path safe as a filter option value inside
// a -vf graph: absolute, forward slashes, option-level escapes, then quoted
// for the graph parser.
func EscapeFilterPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	absPath = strings.ReplaceAll(absPath, `\`, "/")

	escaped := strings.ReplaceAll(absPath, ":", `\:`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return quote(escaped)
}

// quote wraps s in graph-level single quotes. A quote inside s closes the
// quoted run, is emitted escaped, and reopens it.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
