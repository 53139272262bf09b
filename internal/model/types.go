package model

// Metadata describes the exported network: architecture name, tensor
// shapes, the ordered class labels and the square input image size.
// The label order matches the training-time class index order and must
// never be reordered.
type Metadata struct {
	Architecture string   `json:"architecture"`
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	Classes      []string `json:"classes"`
	ImageSize    int      `json:"image_size"`
}

// DefaultMetadata describes the shipped InceptionV3 transfer-learning
// export. A metadata sidecar next to the model file overrides it.
func DefaultMetadata() Metadata {
	return Metadata{
		Architecture: "InceptionV3 (Transfer Learning)",
		InputShape:   []int64{1, 299, 299, 3},
		OutputShape:  []int64{1, 9},
		Classes: []string{
			"alluvial", "black", "cinder", "clay",
			"laterite", "peat", "red", "sandy", "yellow",
		},
		ImageSize: 299,
	}
}

// ImageRequest is the JSON body accepted by the predict endpoints:
// a base64-encoded image, optionally wrapped in a data URL.
type ImageRequest struct {
	Image string `json:"image"`
}

type Prediction struct {
	Class         string             `json:"class"`
	ClassIndex    int                `json:"class_index"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// CentroidPrediction reports the class whose centroid is nearest to
// the probability vector, alongside the regular softmax prediction.
type CentroidPrediction struct {
	Class      string  `json:"class"`
	ClassIndex int     `json:"class_index"`
	Distance   float64 `json:"distance"`
}

type PredictResponse struct {
	Success            bool                `json:"success"`
	Prediction         *Prediction         `json:"prediction"`
	CentroidPrediction *CentroidPrediction `json:"centroid_prediction,omitempty"`
	ProcessingTime     float64             `json:"processing_time"`
}
