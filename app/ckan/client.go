// Package ckan publishes harvested datasets to a CKAN catalog through its
// REST API: package create-or-update plus file uploads into the catalog's
// storage area.
package ckan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a catalog client rooted at baseURL. The API key is
// sent on every request via the Authorization header.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// UpsertPackage creates the package when its ID is unknown to the catalog
// and updates it otherwise. Returns true when a new package was created.
func (c *Client) UpsertPackage(pkg *Package) (bool, error) {
	exists, err := c.packageExists(pkg.ID)
	if err != nil {
		return false, err
	}

	endpoint := c.baseURL + "/api/rest/dataset"
	if exists {
		endpoint += "/" + pkg.ID
	}

	body, err := json.Marshal(pkg)
	if err != nil {
		return false, fmt.Errorf("failed to encode package: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to publish package: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("catalog rejected package %s: status %d: %s", pkg.ID, resp.StatusCode, payload)
	}

	slog.Debug("Published package", "id", pkg.ID, "created", !exists)

	return !exists, nil
}

func (c *Client) packageExists(id string) (bool, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/rest/dataset/"+id, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to look up package %s: %w", id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status %d looking up package %s", resp.StatusCode, id)
	}
}

// UploadFile stores the file in the catalog's storage area and returns its
// public URL, resolved against the catalog base when the server answers
// with a relative path.
func (c *Client) UploadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read upload file: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/storage/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("catalog rejected upload of %s: status %d: %s", filepath.Base(path), resp.StatusCode, payload)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("upload response for %s carries no url", filepath.Base(path))
	}

	return c.resolveURL(result.URL)
}

func (c *Client) resolveURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid upload url %q: %w", raw, err)
	}
	if parsed.IsAbs() {
		return raw, nil
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(parsed).String(), nil
}
