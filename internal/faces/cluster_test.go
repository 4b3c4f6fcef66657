package faces

import (
	"errors"
	"fmt"
	"image"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func crop(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func detection(video string, ts float64, emb ...float32) FaceDetection {
	return FaceDetection{
		VideoPath: video,
		Timestamp: ts,
		Box:       BoundingBox{X: 0, Y: 0, Width: 40, Height: 40},
		Embedding: emb,
		Image:     crop(40, 40),
		ClusterID: Noise,
	}
}

func TestClusterSamePersonAcrossVideos(t *testing.T) {
	input := []FaceDetection{
		detection("a.mp4", 1, 1, 0, 0),
		detection("b.mp4", 2, 0.98, 0.05, 0),
		detection("c.mp4", 3, 0.99, 0, 0.03),
	}

	annotated, clusters, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.ID != 0 || c.FaceCount != 3 {
		t.Errorf("unexpected cluster %+v", c)
	}
	want := []string{"a.mp4", "b.mp4", "c.mp4"}
	if !reflect.DeepEqual(c.VideoAppearances, want) {
		t.Errorf("expected appearances %v, got %v", want, c.VideoAppearances)
	}

	for i, d := range annotated {
		if d.ClusterID != 0 {
			t.Errorf("detection %d: expected cluster 0, got %d", i, d.ClusterID)
		}
	}

	groups := GroupByVideo(annotated, []int{0})
	if len(groups) != 3 {
		t.Errorf("expected all 3 videos selected, got %d", len(groups))
	}
}

func TestClusterTwoPeopleOrderedBySize(t *testing.T) {
	// the smaller group appears first so the remap has to reorder
	input := []FaceDetection{
		detection("a.mp4", 0, 0, 1, 0),
		detection("b.mp4", 0, 0, 0.99, 0.02),
		detection("a.mp4", 2, 1, 0, 0),
		detection("a.mp4", 4, 0.99, 0.01, 0),
		detection("b.mp4", 2, 0.97, 0, 0.05),
	}

	annotated, clusters, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].ID != 0 || clusters[0].FaceCount != 3 {
		t.Errorf("cluster 0 should be the larger group, got %+v", clusters[0])
	}
	if clusters[1].ID != 1 || clusters[1].FaceCount != 2 {
		t.Errorf("cluster 1 should be the smaller group, got %+v", clusters[1])
	}

	wantIDs := []int{1, 1, 0, 0, 0}
	for i, d := range annotated {
		if d.ClusterID != wantIDs[i] {
			t.Errorf("detection %d: expected cluster %d, got %d", i, wantIDs[i], d.ClusterID)
		}
	}
}

func TestClusterNoiseAndEmpty(t *testing.T) {
	t.Run("single detection is noise", func(t *testing.T) {
		annotated, clusters, err := NewClusterer(0.5, 2).Cluster([]FaceDetection{detection("a.mp4", 0, 1, 0)})
		if err != nil {
			t.Fatal(err)
		}
		if len(clusters) != 0 {
			t.Errorf("expected no clusters, got %d", len(clusters))
		}
		if annotated[0].ClusterID != Noise {
			t.Errorf("expected noise, got %d", annotated[0].ClusterID)
		}
	})

	t.Run("single detection with min size one", func(t *testing.T) {
		_, clusters, err := NewClusterer(0.5, 1).Cluster([]FaceDetection{detection("a.mp4", 0, 1, 0)})
		if err != nil {
			t.Fatal(err)
		}
		if len(clusters) != 1 || clusters[0].FaceCount != 1 {
			t.Errorf("expected one singleton cluster, got %+v", clusters)
		}
	})

	t.Run("outlier stays noise", func(t *testing.T) {
		input := []FaceDetection{
			detection("a.mp4", 0, 1, 0, 0),
			detection("a.mp4", 1, 0, 0, 1),
			detection("b.mp4", 0, 1, 0.01, 0),
		}
		annotated, clusters, err := NewClusterer(0.5, 2).Cluster(input)
		if err != nil {
			t.Fatal(err)
		}
		if len(clusters) != 1 {
			t.Fatalf("expected 1 cluster, got %d", len(clusters))
		}
		if annotated[1].ClusterID != Noise {
			t.Errorf("outlier should be noise, got %d", annotated[1].ClusterID)
		}
	})

	t.Run("no detections", func(t *testing.T) {
		annotated, clusters, err := NewClusterer(0.5, 2).Cluster(nil)
		if err != nil || len(annotated) != 0 || len(clusters) != 0 {
			t.Errorf("expected empty result, got %v %v %v", annotated, clusters, err)
		}
	})
}

func TestClusterDoesNotMutateInput(t *testing.T) {
	input := []FaceDetection{
		detection("a.mp4", 0, 1, 0),
		detection("b.mp4", 0, 1, 0.01),
	}

	annotated, _, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range input {
		if d.ClusterID != Noise {
			t.Errorf("input %d was mutated to %d", i, d.ClusterID)
		}
	}
	if annotated[0].ClusterID != 0 {
		t.Errorf("expected annotated copy to carry cluster 0, got %d", annotated[0].ClusterID)
	}
}

func TestClusterRepresentativeIsLargestCrop(t *testing.T) {
	big := crop(80, 60)
	tie := crop(60, 80)
	input := []FaceDetection{
		detection("a.mp4", 0, 1, 0),
		detection("a.mp4", 1, 1, 0),
		detection("a.mp4", 2, 1, 0),
	}
	input[1].Image = big
	input[2].Image = tie

	_, clusters, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatal(err)
	}
	if clusters[0].Representative != big {
		t.Error("expected the first of the largest crops as representative")
	}
}

func TestClusterEqualSizesKeepEncounterOrder(t *testing.T) {
	input := []FaceDetection{
		detection("a.mp4", 0, 0, 1),
		detection("a.mp4", 1, 1, 0),
		detection("a.mp4", 2, 0, 1),
		detection("a.mp4", 3, 1, 0),
	}

	annotated, clusters, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	want := []int{0, 1, 0, 1}
	for i, d := range annotated {
		if d.ClusterID != want[i] {
			t.Errorf("detection %d: expected %d, got %d", i, want[i], d.ClusterID)
		}
	}
}

func TestClusterIDsAreDenseAndSorted(t *testing.T) {
	var input []FaceDetection
	vectors := [][]float32{
		{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1},
		{1, 0.01, 0, 0}, {0, 1, 0.01, 0}, {0, 0, 1, 0.01},
		{0.99, 0, 0.02, 0}, {0.01, 0.99, 0, 0},
	}
	for i, v := range vectors {
		input = append(input, detection("v.mp4", float64(i), v...))
	}

	annotated, clusters, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatal(err)
	}

	for i, c := range clusters {
		if c.ID != i {
			t.Errorf("cluster at %d has ID %d", i, c.ID)
		}
		if i > 0 && clusters[i-1].FaceCount < c.FaceCount {
			t.Errorf("clusters not sorted by face count: %d before %d", clusters[i-1].FaceCount, c.FaceCount)
		}
	}

	counts := make(map[int]int)
	for _, d := range annotated {
		if d.ClusterID != Noise && (d.ClusterID < 0 || d.ClusterID >= len(clusters)) {
			t.Errorf("detection has out of range cluster %d", d.ClusterID)
		}
		counts[d.ClusterID]++
	}
	for _, c := range clusters {
		if counts[c.ID] != c.FaceCount {
			t.Errorf("cluster %d declares %d faces but %d detections carry it", c.ID, c.FaceCount, counts[c.ID])
		}
	}

	// same input, same partition
	again, _, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatal(err)
	}
	for i := range annotated {
		if annotated[i].ClusterID != again[i].ClusterID {
			t.Errorf("detection %d: non-deterministic cluster %d vs %d", i, annotated[i].ClusterID, again[i].ClusterID)
		}
	}
}

func TestClusterScaleInvariant(t *testing.T) {
	input := []FaceDetection{
		detection("a.mp4", 0, 10, 0),
		detection("a.mp4", 1, 0.1, 0.001),
	}
	_, clusters, err := NewClusterer(0.5, 2).Cluster(input)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Errorf("vectors differing only in scale should cluster, got %d clusters", len(clusters))
	}
}

func TestClusterRejectsMixedDimensions(t *testing.T) {
	input := []FaceDetection{
		detection("a.mp4", 0, 1, 0, 0),
		detection("a.mp4", 1, 1, 0),
	}
	_, _, err := NewClusterer(0.5, 2).Cluster(input)
	if !errors.Is(err, ErrEmbeddingMismatch) {
		t.Errorf("expected ErrEmbeddingMismatch, got %v", err)
	}
}

func TestClusterPartitionIgnoresInputOrder(t *testing.T) {
	input := []FaceDetection{
		detection("a.mp4", 0, 0, 1, 0),
		detection("a.mp4", 2, 1, 0, 0),
		detection("b.mp4", 0, 0.02, 0.99, 0),
		detection("b.mp4", 2, 0.99, 0.01, 0),
		detection("c.mp4", 0, 0, 0, 1),
		detection("c.mp4", 2, 0.97, 0, 0.05),
		detection("c.mp4", 4, 0, 0.98, 0.04),
	}

	// partition maps each detection to the sorted members of its person
	partition := func(t *testing.T, in []FaceDetection) map[string]string {
		t.Helper()
		annotated, clusters, err := NewClusterer(0.5, 2).Cluster(in)
		if err != nil {
			t.Fatalf("Cluster failed: %v", err)
		}
		if len(clusters) != 2 {
			t.Fatalf("expected 2 clusters, got %d", len(clusters))
		}

		key := func(d FaceDetection) string { return fmt.Sprintf("%s@%g", d.VideoPath, d.Timestamp) }
		members := map[int][]string{}
		for _, d := range annotated {
			members[d.ClusterID] = append(members[d.ClusterID], key(d))
		}
		out := map[string]string{}
		for _, d := range annotated {
			group := append([]string(nil), members[d.ClusterID]...)
			sort.Strings(group)
			out[key(d)] = strings.Join(group, ",")
		}
		return out
	}

	want := partition(t, input)

	reversed := make([]FaceDetection, len(input))
	for i, d := range input {
		reversed[len(input)-1-i] = d
	}
	shuffled := []FaceDetection{input[4], input[1], input[6], input[0], input[3], input[5], input[2]}

	for name, in := range map[string][]FaceDetection{"reversed": reversed, "shuffled": shuffled} {
		t.Run(name, func(t *testing.T) {
			if got := partition(t, in); !reflect.DeepEqual(got, want) {
				t.Errorf("partition changed with input order:\nwant %v\ngot  %v", want, got)
			}
		})
	}
}
