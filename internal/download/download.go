// Package download fetches call audio files from the Broadcastify CDN.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/radiolurker/crier/internal/bcfy"
)

// Downloader writes call media files into a local directory.
type Downloader struct {
	http *http.Client
}

// New returns a Downloader using the provided HTTP client, or a default
// one when nil.
func New(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{http: client}
}

// Fetch downloads rawURL into dir, named after the URL's last path
// segment. When the file already exists it is left alone and skipped is
// true. The file appears atomically: content is streamed to a temp file
// and renamed into place only on success.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dir string) (localPath string, skipped bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("parse media url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", false, fmt.Errorf("media url %q has no file name", rawURL)
	}
	localPath = filepath.Join(dir, name)

	if _, err := os.Stat(localPath); err == nil {
		return localPath, true, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, &bcfy.FetchError{Op: "download", Err: err}
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return "", false, &bcfy.FetchError{Op: "download", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return "", false, &bcfy.FetchError{Op: "download", Status: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(dir, name+".part-*")
	if err != nil {
		return "", false, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		return "", false, &bcfy.FetchError{Op: "download", Err: err}
	}
	if err = tmp.Close(); err != nil {
		return "", false, fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), localPath); err != nil {
		return "", false, fmt.Errorf("finalize download: %w", err)
	}
	return localPath, false, nil
}

// FetchCall downloads one call's audio file into dir.
func (d *Downloader) FetchCall(ctx context.Context, call bcfy.Call, dir string) (string, bool, error) {
	return d.Fetch(ctx, call.MediaURL(), dir)
}
