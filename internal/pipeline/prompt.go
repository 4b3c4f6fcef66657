package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kikiluvv/memoryreel/internal/cache"
	"github.com/kikiluvv/memoryreel/internal/faces"
)

// Prompter asks the user questions on a line-oriented terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Only y or yes counts as yes.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s (y/n): ", question)
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// CacheSummary shows what a reusable cache contains.
func (p *Prompter) CacheSummary(s *cache.Summary) {
	fmt.Fprintln(p.out, "Found a valid scan cache:")
	fmt.Fprintf(p.out, "  Scanned: %s\n", s.ScanTimestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(p.out, "  Videos:  %d\n", s.VideoCount)
	fmt.Fprintf(p.out, "  Faces:   %d\n", s.FaceCount)
	fmt.Fprintf(p.out, "  People:  %d\n", s.ClusterCount)
}

// SelectPeople lists the people found and asks which to feature, until the
// answer is valid or input ends.
func (p *Prompter) SelectPeople(clusters []faces.PersonCluster, previewDir string) ([]int, error) {
	fmt.Fprintf(p.out, "Face previews saved to %s\n\nPeople found:\n", previewDir)
	for _, c := range clusters {
		fmt.Fprintf(p.out, "  person_%d.jpg - %d detections (%d videos)\n", c.ID, c.FaceCount, len(c.VideoAppearances))
	}
	fmt.Fprintln(p.out, "\nEnter person IDs separated by commas (e.g. 0,1), or 'all'.")

	for {
		fmt.Fprint(p.out, "Person IDs: ")
		answer, err := p.readLine()
		if err != nil {
			return nil, err
		}

		ids, err := faces.ParseSelection(answer, clusters)
		if err != nil {
			fmt.Fprintf(p.out, "Error: %v\nValid IDs: %v\n", err, faces.ValidIDs(clusters))
			continue
		}
		return ids, nil
	}
}
