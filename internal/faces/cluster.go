package faces

import (
	"errors"
	"fmt"
	"image"
	"sort"
)

// ErrEmbeddingMismatch is returned when detections carry vectors of different lengths.
var ErrEmbeddingMismatch = errors.New("embeddings have different dimensions")

// Clusterer groups detections into people.
type Clusterer struct {
	// Eps is the neighbourhood radius over unit-length embeddings.
	Eps float64
	// MinSamples is the smallest neighbourhood that makes a core point, and
	// so the smallest person that can exist.
	MinSamples int
}

// NewClusterer returns a clusterer with the given radius and minimum size.
func NewClusterer(eps float64, minSamples int) *Clusterer {
	return &Clusterer{Eps: eps, MinSamples: minSamples}
}

// Cluster assigns every detection to a person or to Noise and returns the
// people ordered by descending face count with IDs 0..N-1. The input slice
// is not modified; the returned copy carries the final cluster IDs. An
// empty cluster list means no person could be formed.
func (c *Clusterer) Cluster(detections []FaceDetection) ([]FaceDetection, []PersonCluster, error) {
	annotated := make([]FaceDetection, len(detections))
	copy(annotated, detections)
	if len(annotated) == 0 {
		return annotated, nil, nil
	}

	vectors := make([]Embedding, len(annotated))
	dim := len(annotated[0].Embedding)
	for i, d := range annotated {
		if len(d.Embedding) != dim {
			return nil, nil, fmt.Errorf("%w: detection %d has %d values, expected %d",
				ErrEmbeddingMismatch, i, len(d.Embedding), dim)
		}
		vectors[i] = d.Embedding
	}

	labels := dbscan(normalizeRows(vectors), c.Eps, c.MinSamples)

	// group by raw label in encounter order
	var order []int
	members := make(map[int][]int)
	for i, label := range labels {
		annotated[i].ClusterID = label
		if label == Noise {
			continue
		}
		if _, seen := members[label]; !seen {
			order = append(order, label)
		}
		members[label] = append(members[label], i)
	}

	type group struct {
		raw     int
		cluster PersonCluster
	}
	groups := make([]group, 0, len(order))
	for _, label := range order {
		idx := members[label]
		groups = append(groups, group{
			raw: label,
			cluster: PersonCluster{
				Representative:   representative(annotated, idx),
				FaceCount:        len(idx),
				VideoAppearances: distinctVideos(annotated, idx),
			},
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].cluster.FaceCount > groups[j].cluster.FaceCount
	})

	remap := make(map[int]int, len(groups))
	clusters := make([]PersonCluster, len(groups))
	for id, g := range groups {
		remap[g.raw] = id
		g.cluster.ID = id
		clusters[id] = g.cluster
	}
	for i := range annotated {
		if id, ok := remap[annotated[i].ClusterID]; ok {
			annotated[i].ClusterID = id
		}
	}

	return annotated, clusters, nil
}

// representative returns the largest crop among members; the first wins ties.
func representative(detections []FaceDetection, members []int) image.Image {
	var best image.Image
	bestArea := -1
	for _, i := range members {
		img := detections[i].Image
		area := 0
		if img != nil {
			b := img.Bounds()
			area = b.Dx() * b.Dy()
		}
		if area > bestArea {
			best = img
			bestArea = area
		}
	}
	return best
}

func distinctVideos(detections []FaceDetection, members []int) []string {
	seen := make(map[string]bool)
	var videos []string
	for _, i := range members {
		v := detections[i].VideoPath
		if !seen[v] {
			seen[v] = true
			videos = append(videos, v)
		}
	}
	return videos
}
