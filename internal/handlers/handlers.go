package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/soilscan/soil-api/internal/model"
)

// Parse multipart forms up to 10MB
const maxUploadSize = 10 << 20

type Handler struct {
	svc    *model.Service
	logger *slog.Logger
}

func NewHandler(svc *model.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Status reports fixed descriptive metadata plus whether the model is
// loaded. Registered at "/", so it also answers unknown paths with 404.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "online",
		"message":      "Soil Classification API",
		"model":        h.svc.Meta.Architecture,
		"classes":      len(h.svc.Classes()),
		"model_loaded": h.svc.ModelLoaded(),
		"endpoints": map[string]string{
			"health":     "/health",
			"predict":    "/predict (POST)",
			"classes":    "/classes",
			"model_info": "/model-info",
		},
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, message := "healthy", "Ready"
	if !h.svc.ModelLoaded() {
		status, message = "model_not_loaded", "Model not loaded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           status,
		"message":          message,
		"model_loaded":     h.svc.ModelLoaded(),
		"centroids_loaded": h.svc.CentroidsLoaded(),
		"num_classes":      len(h.svc.Classes()),
	})
}

func (h *Handler) Classes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"classes": h.svc.Classes(),
		"count":   len(h.svc.Classes()),
	})
}

func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"architecture": h.svc.Meta.Architecture,
		"input_shape":  []int{h.svc.Meta.ImageSize, h.svc.Meta.ImageSize, 3},
		"classes":      h.svc.Classes(),
		"count":        len(h.svc.Classes()),
	})
}

// Predict accepts an image as either a multipart "file" field or a
// base64 data URL in a JSON "image" field, runs the preprocessing
// pipeline and one forward pass, and returns the softmax result.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	h.predict(w, r, false)
}

// PredictWithCentroids behaves like Predict and additionally reports
// the nearest-centroid class. Unavailable until the centroid table has
// loaded.
func (h *Handler) PredictWithCentroids(w http.ResponseWriter, r *http.Request) {
	h.predict(w, r, true)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request, withCentroids bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	if !h.svc.ModelLoaded() {
		writeError(w, http.StatusServiceUnavailable, "Model not loaded. Please check server logs.")
		return
	}
	if withCentroids && !h.svc.CentroidsLoaded() {
		writeError(w, http.StatusServiceUnavailable, "Centroids not loaded. Please check server logs.")
		return
	}

	data, err := resolveImageInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Debug("image received", "bytes", len(data))

	// Processing time covers decode through argmax, not request parsing.
	start := time.Now()

	img, err := decodeImage(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := preprocess(img, h.svc.Meta.ImageSize)

	var (
		pred     *model.Prediction
		centroid *model.CentroidPrediction
	)
	if withCentroids {
		pred, centroid, err = h.svc.PredictWithCentroids(input)
	} else {
		pred, err = h.svc.Predict(input)
	}
	if err != nil {
		h.logger.Error("prediction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.PredictResponse{
		Success:            true,
		Prediction:         pred,
		CentroidPrediction: centroid,
		ProcessingTime:     round3(time.Since(start).Seconds()),
	})
}

// resolveImageInput extracts raw image bytes from exactly one of the
// two accepted request forms. Supplying both forms, neither form, or a
// malformed body is a client error.
func resolveImageInput(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}
		if r.FormValue("image") != "" {
			return nil, errors.New("provide either a file upload or a base64 image, not both")
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("no image file provided; use 'file' as the form field name")
		}
		defer file.Close()
		if header.Filename == "" {
			return nil, errors.New("no file selected")
		}

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read uploaded file: %w", err)
		}
		return data, nil

	case strings.HasPrefix(contentType, "application/json"):
		var req model.ImageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		if req.Image == "" {
			return nil, errors.New("no 'image' field in JSON request")
		}

		payload := req.Image
		// Strip a data URL prefix if present.
		if idx := strings.Index(payload, "base64,"); idx >= 0 {
			payload = payload[idx+len("base64,"):]
		}

		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image data: %w", err)
		}
		return data, nil

	default:
		return nil, errors.New("invalid request format; use multipart/form-data or JSON with a base64 image")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

func round3(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}
