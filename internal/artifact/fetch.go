// Package artifact fetches model files that are not present locally.
// Downloading on a missing file is a startup convenience; once the
// file exists it is never touched again.
package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
)

const maxDownloadRetries = 4

// EnsureLocal makes sure the artifact at path exists. When the file is
// missing and a URL is configured, it is downloaded with exponential
// backoff to a temp file and renamed into place; a missing file with
// no URL is an error.
func EnsureLocal(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return fmt.Errorf("artifact %s is missing and no download URL is configured", path)
	}

	slog.Info("downloading artifact", "path", path, "url", url)
	op := func() error {
		if err := download(ctx, path, url); err != nil {
			slog.Warn("artifact download attempt failed", "url", url, "error", err)
			return err
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxDownloadRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	return nil
}

func download(ctx context.Context, path, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
