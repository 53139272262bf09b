package model

import (
	"errors"
	"fmt"
)

var (
	ErrModelNotLoaded     = errors.New("model not loaded")
	ErrCentroidsNotLoaded = errors.New("centroids not loaded")
)

// Service is the process-wide inference context handlers receive. The
// classifier and centroid table are set once at startup and never
// replaced; a failed load leaves the corresponding handle nil for the
// process lifetime, and restart is the only recovery.
type Service struct {
	Meta       Metadata
	classifier Classifier
	centroids  *CentroidTable
}

// NewService wires a loaded (or nil, if loading failed) classifier and
// an optional centroid table into a service context.
func NewService(meta Metadata, classifier Classifier, centroids *CentroidTable) *Service {
	return &Service{
		Meta:       meta,
		classifier: classifier,
		centroids:  centroids,
	}
}

func (s *Service) ModelLoaded() bool {
	return s.classifier != nil
}

func (s *Service) CentroidsLoaded() bool {
	return s.centroids != nil
}

// Classes returns the ordered class labels, matching the
// training-time class index order.
func (s *Service) Classes() []string {
	return s.Meta.Classes
}

// Predict runs one forward pass and shapes the result: argmax class,
// its index, confidence, and the full per-label probability map.
func (s *Service) Predict(input []float32) (*Prediction, error) {
	probs, err := s.probabilities(input)
	if err != nil {
		return nil, err
	}
	return s.buildPrediction(probs), nil
}

// PredictWithCentroids runs the same softmax pipeline as Predict and
// additionally reports the class whose centroid is nearest to the
// probability vector. The centroid result augments the softmax
// prediction, it does not replace it.
func (s *Service) PredictWithCentroids(input []float32) (*Prediction, *CentroidPrediction, error) {
	if s.centroids == nil {
		return nil, nil, ErrCentroidsNotLoaded
	}

	probs, err := s.probabilities(input)
	if err != nil {
		return nil, nil, err
	}

	idx, dist := s.centroids.Nearest(probs)
	centroid := &CentroidPrediction{
		Class:      s.Meta.Classes[idx],
		ClassIndex: idx,
		Distance:   dist,
	}
	return s.buildPrediction(probs), centroid, nil
}

func (s *Service) probabilities(input []float32) ([]float64, error) {
	if s.classifier == nil {
		return nil, ErrModelNotLoaded
	}

	out, err := s.classifier.Predict(input)
	if err != nil {
		return nil, err
	}
	if len(out) < len(s.Meta.Classes) {
		return nil, fmt.Errorf("model returned %d values for %d classes", len(out), len(s.Meta.Classes))
	}

	probs := make([]float64, len(s.Meta.Classes))
	for i := range probs {
		probs[i] = float64(out[i])
	}
	return probs, nil
}

func (s *Service) buildPrediction(probs []float64) *Prediction {
	maxIdx := 0
	probabilities := make(map[string]float64, len(probs))
	for i, label := range s.Meta.Classes {
		probabilities[label] = probs[i]
		if probs[i] > probs[maxIdx] {
			maxIdx = i
		}
	}

	return &Prediction{
		Class:         s.Meta.Classes[maxIdx],
		ClassIndex:    maxIdx,
		Confidence:    probs[maxIdx],
		Probabilities: probabilities,
	}
}
