package model

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

type fakeClassifier struct {
	probs []float32
	err   error
}

func (f *fakeClassifier) Predict(input []float32) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.probs, nil
}

func writeCentroidFile(t *testing.T, centroids map[string][]float64) string {
	t.Helper()
	data, err := json.Marshal(centroids)
	if err != nil {
		t.Fatalf("marshal centroids: %v", err)
	}
	path := filepath.Join(t.TempDir(), "centroids.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write centroids: %v", err)
	}
	return path
}

// oneHotCentroids builds a table whose centroid for each class is that
// class's one-hot probability vector.
func oneHotCentroids(t *testing.T, classes []string) *CentroidTable {
	t.Helper()
	raw := make(map[string][]float64, len(classes))
	for i, label := range classes {
		vec := make([]float64, len(classes))
		vec[i] = 1
		raw[label] = vec
	}
	table, err := LoadCentroids(writeCentroidFile(t, raw), classes)
	if err != nil {
		t.Fatalf("load centroids: %v", err)
	}
	return table
}

func TestPredictArgmaxInvariants(t *testing.T) {
	meta := DefaultMetadata()
	probs := []float32{0.02, 0.05, 0.1, 0.6, 0.03, 0.05, 0.05, 0.05, 0.05}
	svc := NewService(meta, &fakeClassifier{probs: probs}, nil)

	pred, err := svc.Predict(make([]float32, 299*299*3))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if pred.ClassIndex != 3 {
		t.Errorf("class_index = %d, want 3", pred.ClassIndex)
	}
	if pred.Class != "clay" {
		t.Errorf("class = %q, want clay", pred.Class)
	}
	if math.Abs(pred.Confidence-0.6) > 1e-6 {
		t.Errorf("confidence = %v, want 0.6", pred.Confidence)
	}
	if pred.Confidence != pred.Probabilities[pred.Class] {
		t.Errorf("confidence %v does not equal probability of predicted class %v",
			pred.Confidence, pred.Probabilities[pred.Class])
	}
}

func TestPredictProbabilityMap(t *testing.T) {
	meta := DefaultMetadata()
	probs := []float32{0.1, 0.1, 0.1, 0.1, 0.2, 0.1, 0.1, 0.1, 0.1}
	svc := NewService(meta, &fakeClassifier{probs: probs}, nil)

	pred, err := svc.Predict(nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if len(pred.Probabilities) != len(meta.Classes) {
		t.Fatalf("probability map has %d entries, want %d", len(pred.Probabilities), len(meta.Classes))
	}

	var sum float64
	for _, label := range meta.Classes {
		p, ok := pred.Probabilities[label]
		if !ok {
			t.Errorf("probability map is missing class %q", label)
		}
		if p < 0 {
			t.Errorf("probability for %q is negative: %v", label, p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-3 {
		t.Errorf("probabilities sum to %v, want 1.0", sum)
	}
}

func TestPredictModelNotLoaded(t *testing.T) {
	svc := NewService(DefaultMetadata(), nil, nil)

	if svc.ModelLoaded() {
		t.Error("ModelLoaded() = true with nil classifier")
	}
	if _, err := svc.Predict(nil); !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("Predict error = %v, want ErrModelNotLoaded", err)
	}
}

func TestPredictClassifierErrorPropagates(t *testing.T) {
	boom := errors.New("run failed")
	svc := NewService(DefaultMetadata(), &fakeClassifier{err: boom}, nil)

	if _, err := svc.Predict(nil); !errors.Is(err, boom) {
		t.Errorf("Predict error = %v, want %v", err, boom)
	}
}

func TestPredictShortOutput(t *testing.T) {
	svc := NewService(DefaultMetadata(), &fakeClassifier{probs: []float32{0.5, 0.5}}, nil)

	if _, err := svc.Predict(nil); err == nil {
		t.Error("Predict accepted an output vector shorter than the class list")
	}
}

func TestPredictWithCentroids(t *testing.T) {
	meta := DefaultMetadata()
	probs := []float32{0.01, 0.01, 0.01, 0.01, 0.9, 0.02, 0.02, 0.01, 0.01}
	svc := NewService(meta, &fakeClassifier{probs: probs}, oneHotCentroids(t, meta.Classes))

	if !svc.CentroidsLoaded() {
		t.Fatal("CentroidsLoaded() = false")
	}

	pred, centroid, err := svc.PredictWithCentroids(nil)
	if err != nil {
		t.Fatalf("PredictWithCentroids: %v", err)
	}

	// Softmax prediction is unchanged by centroid mode.
	if pred.Class != "laterite" || pred.ClassIndex != 4 {
		t.Errorf("prediction = %s/%d, want laterite/4", pred.Class, pred.ClassIndex)
	}
	// With one-hot centroids the nearest centroid is the argmax class.
	if centroid.Class != "laterite" || centroid.ClassIndex != 4 {
		t.Errorf("centroid prediction = %s/%d, want laterite/4", centroid.Class, centroid.ClassIndex)
	}
	if centroid.Distance < 0 {
		t.Errorf("distance = %v, want non-negative", centroid.Distance)
	}
}

func TestPredictWithCentroidsNotLoaded(t *testing.T) {
	svc := NewService(DefaultMetadata(), &fakeClassifier{probs: make([]float32, 9)}, nil)

	if _, _, err := svc.PredictWithCentroids(nil); !errors.Is(err, ErrCentroidsNotLoaded) {
		t.Errorf("PredictWithCentroids error = %v, want ErrCentroidsNotLoaded", err)
	}
}

func TestClassesStableOrder(t *testing.T) {
	svc := NewService(DefaultMetadata(), nil, nil)

	want := []string{"alluvial", "black", "cinder", "clay", "laterite", "peat", "red", "sandy", "yellow"}
	for call := 0; call < 3; call++ {
		got := svc.Classes()
		if len(got) != len(want) {
			t.Fatalf("Classes() returned %d labels, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Classes()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	}
}

func TestLoadMetadata(t *testing.T) {
	want := DefaultMetadata()
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	path := filepath.Join(t.TempDir(), "metadata.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	got, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if got.Architecture != want.Architecture || got.ImageSize != want.ImageSize {
		t.Errorf("metadata = %+v, want %+v", got, want)
	}
	if len(got.Classes) != len(want.Classes) {
		t.Errorf("metadata lists %d classes, want %d", len(got.Classes), len(want.Classes))
	}
}

func TestLoadMetadataMissingFile(t *testing.T) {
	if _, err := LoadMetadata(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadMetadata succeeded on a missing file")
	}
}

func TestLoadMetadataNoClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	if err := os.WriteFile(path, []byte(`{"image_size": 299}`), 0644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if _, err := LoadMetadata(path); err == nil {
		t.Error("LoadMetadata accepted metadata without classes")
	}
}
