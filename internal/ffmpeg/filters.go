package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/kikiluvv/memoryreel/pkg/util"
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Transpose rotates the picture clockwise by degrees. Only quarter turns
// add filters.
func (fb *FilterBuilder) Transpose(degrees int) *FilterBuilder {
	switch normalizeRotation(degrees) {
	case 90:
		fb.filters = append(fb.filters, "transpose=1")
	case 180:
		fb.filters = append(fb.filters, "transpose=2", "transpose=2")
	case 270:
		fb.filters = append(fb.filters, "transpose=2")
	}
	return fb
}

// ScaleToFit scales so the picture fits inside width x height keeping its
// aspect ratio. The free side is rounded to an even size.
func (fb *FilterBuilder) ScaleToFit(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	ratio := fmt.Sprintf(`gt(iw/ih\,%d/%d)`, width, height)
	fb.filters = append(fb.filters, fmt.Sprintf(
		`scale=w=if(%s\,%d\,-2):h=if(%s\,-2\,%d)`, ratio, width, ratio, height))
	return fb
}

// Pad centers the picture on a width x height canvas of color.
func (fb *FilterBuilder) Pad(width, height int, color string) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:%s", width, height, color))
	return fb
}

// FPS adds an fps filter. rate may be a fraction such as 30000/1001.
func (fb *FilterBuilder) FPS(rate string) *FilterBuilder {
	if rate == "" {
		return fb
	}
	fb.filters = append(fb.filters, "fps="+rate)
	return fb
}

// SetSAR forces a square pixel aspect ratio.
func (fb *FilterBuilder) SetSAR() *FilterBuilder {
	fb.filters = append(fb.filters, "setsar=1")
	return fb
}

// ASetPTS resets audio timestamps to start at zero.
func (fb *FilterBuilder) ASetPTS() *FilterBuilder {
	fb.filters = append(fb.filters, "asetpts=PTS-STARTPTS")
	return fb
}

// AFadeOut fades audio out over the last fade seconds of total. Nothing is
// added when total is not longer than fade.
func (fb *FilterBuilder) AFadeOut(total, fade float64) *FilterBuilder {
	if fade <= 0 || total <= fade {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("afade=t=out:st=%s:d=%s",
		util.FormatSeconds(total-fade), util.FormatSeconds(fade)))
	return fb
}

// Volume scales audio linearly.
func (fb *FilterBuilder) Volume(factor float64) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("volume=%.2f", factor))
	return fb
}

// AResample resamples audio to rate Hz.
func (fb *FilterBuilder) AResample(rate int) *FilterBuilder {
	if rate <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("aresample=%d", rate))
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// BuildAll returns all filters as a slice
func (fb *FilterBuilder) BuildAll() []string {
	return fb.filters
}

// FilterChain is a ready list of video filters for one render.
type FilterChain struct {
	Filters []string
}
