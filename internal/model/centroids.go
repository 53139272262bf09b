package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// CentroidTable holds one representative vector per class, indexed by
// the training-time class order. The vectors live in probability space
// (length equals the class count) and are immutable after load.
type CentroidTable struct {
	vectors [][]float64
}

// LoadCentroids reads a JSON file mapping class labels to centroid
// vectors and validates it against the ordered class list: every class
// must be present and every vector must have one value per class.
func LoadCentroids(path string, classes []string) (*CentroidTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read centroids: %w", err)
	}

	var raw map[string][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse centroids: %w", err)
	}

	vectors := make([][]float64, len(classes))
	for i, label := range classes {
		vec, ok := raw[label]
		if !ok {
			return nil, fmt.Errorf("centroid table is missing class %q", label)
		}
		if len(vec) != len(classes) {
			return nil, fmt.Errorf("centroid for %q has %d values, want %d", label, len(vec), len(classes))
		}
		vectors[i] = vec
	}

	return &CentroidTable{vectors: vectors}, nil
}

// Nearest returns the class index whose centroid is closest to vec by
// Euclidean distance, and that distance.
func (t *CentroidTable) Nearest(vec []float64) (int, float64) {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range t.vectors {
		var sum float64
		for j := range c {
			d := vec[j] - c[j]
			sum += d * d
		}
		if dist := math.Sqrt(sum); dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best, bestDist
}
