package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureLocalExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(path, []byte("weights"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// URL must not be contacted when the file already exists.
	if err := EnsureLocal(context.Background(), path, "http://127.0.0.1:1/unreachable"); err != nil {
		t.Fatalf("EnsureLocal: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "weights" {
		t.Errorf("file content changed: %q, %v", data, err)
	}
}

func TestEnsureLocalDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("downloaded weights"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "artifacts", "model.onnx")
	if err := EnsureLocal(context.Background(), path, srv.URL); err != nil {
		t.Fatalf("EnsureLocal: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(data) != "downloaded weights" {
		t.Errorf("content = %q", data)
	}
}

func TestEnsureLocalMissingNoURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")

	if err := EnsureLocal(context.Background(), path, ""); err == nil {
		t.Error("EnsureLocal succeeded with no file and no URL")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("EnsureLocal created a file out of nothing")
	}
}

func TestEnsureLocalCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "model.onnx")
	if err := EnsureLocal(ctx, path, srv.URL); err == nil {
		t.Error("EnsureLocal succeeded with a cancelled context")
	}
}
