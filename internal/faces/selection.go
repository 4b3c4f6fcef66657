package faces

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSelection is returned for selections naming unknown or malformed IDs.
var ErrInvalidSelection = errors.New("invalid person selection")

// GroupByVideo keeps the detections of the selected people, grouped by
// video, each list in encounter order.
func GroupByVideo(detections []FaceDetection, ids []int) map[string][]FaceDetection {
	selected := idSet(ids)
	byVideo := make(map[string][]FaceDetection)
	for _, d := range detections {
		if selected[d.ClusterID] {
			byVideo[d.VideoPath] = append(byVideo[d.VideoPath], d)
		}
	}
	return byVideo
}

// BestTimestampForPerson returns the timestamp where a selected person's
// box is largest. When nobody selected is present it falls back to the
// first detection's timestamp, or 0 for no detections.
func BestTimestampForPerson(detections []FaceDetection, ids []int) float64 {
	selected := idSet(ids)

	bestArea := -1
	best := -1
	for i, d := range detections {
		if !selected[d.ClusterID] {
			continue
		}
		if area := d.Box.Area(); area > bestArea {
			bestArea = area
			best = i
		}
	}

	switch {
	case best >= 0:
		return detections[best].Timestamp
	case len(detections) > 0:
		return detections[0].Timestamp
	default:
		return 0.0
	}
}

// ParseSelection turns user input into cluster IDs. "all" selects every
// cluster; otherwise input is a comma separated list of known IDs.
// Duplicates are dropped and input order is kept.
func ParseSelection(input string, clusters []PersonCluster) ([]int, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "all") {
		return ValidIDs(clusters), nil
	}

	valid := make(map[int]bool, len(clusters))
	for _, c := range clusters {
		valid[c.ID] = true
	}

	var ids, unknown []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, part)
		}
		if !valid[id] {
			unknown = append(unknown, id)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown ids %v, valid ids are %v", ErrInvalidSelection, unknown, ValidIDs(clusters))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids given", ErrInvalidSelection)
	}
	return ids, nil
}

// ValidIDs lists the cluster IDs in order.
func ValidIDs(clusters []PersonCluster) []int {
	ids := make([]int, len(clusters))
	for i, c := range clusters {
		ids[i] = c.ID
	}
	return ids
}

func idSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id != Noise {
			set[id] = true
		}
	}
	return set
}
