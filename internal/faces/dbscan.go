package faces

import "math"

// dbscan labels points by density. A point is core when at least minSamples
// points (itself included) lie within eps. Clusters are numbered from 0 in
// the order their first core point appears; a border point reachable from
// several clusters keeps the first one that reaches it. Everything else is
// Noise.
func dbscan(points [][]float64, eps float64, minSamples int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}

	neighbors := make([][]int, n)
	for i := range points {
		for j := range points {
			if euclidean(points[i], points[j]) <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	next := 0
	var stack []int
	for i := range points {
		if labels[i] != Noise || len(neighbors[i]) < minSamples {
			continue
		}

		p := i
		for {
			if labels[p] == Noise {
				labels[p] = next
				if len(neighbors[p]) >= minSamples {
					for _, q := range neighbors[p] {
						if labels[q] == Noise {
							stack = append(stack, q)
						}
					}
				}
			}
			if len(stack) == 0 {
				break
			}
			p = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		next++
	}

	return labels
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// normalizeRows scales each vector to unit length. The epsilon keeps zero
// vectors at zero instead of dividing by zero.
func normalizeRows(vectors []Embedding) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		norm := math.Sqrt(sum) + 1e-10

		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = float64(x) / norm
		}
		out[i] = row
	}
	return out
}
