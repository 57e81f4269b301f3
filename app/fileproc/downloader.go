package fileproc

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
)

// downloadChunkSize bounds memory use while streaming remote files of
// arbitrary size.
const downloadChunkSize = 10 * 1024 * 1024 // 10 MiB

// Downloader streams remote files into uniquely named temporary files.
type Downloader struct {
	httpClient *http.Client
	userAgent  string
}

// NewDownloader creates a downloader using the given HTTP client
func NewDownloader(httpClient *http.Client, userAgent string) *Downloader {
	return &Downloader{httpClient: httpClient, userAgent: userAgent}
}

// Run downloads rawURL to a temporary file in fixed-size chunks and
// returns its path. The file is owned by the caller, who must delete it.
// A non-success response yields no file; the owning stage must treat
// that as its own failure.
func (d *Downloader) Run(rawURL string) (string, error) {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		slog.Error("Download failed", "url", rawURL, "error", err)
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("Download failed", "url", rawURL, "status", resp.StatusCode)
		return "", fmt.Errorf("HTTP error downloading %s: %d %s", rawURL, resp.StatusCode, resp.Status)
	}

	f, err := os.CreateTemp("", tempPrefix(rawURL)+"_*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := io.CopyBuffer(f, resp.Body, make([]byte, downloadChunkSize)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write download to disk: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close downloaded file: %w", err)
	}

	return f.Name(), nil
}

// tempPrefix derives a recognizable temp-file prefix from the URL path
func tempPrefix(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return "download"
	}
	return path.Base(parsed.Path)
}
