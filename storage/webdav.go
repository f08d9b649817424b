/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-webdav"

	"github.com/humaidq/labinsight/logging"
)

var logger = logging.Logger(logging.SourceStorage)

// WebDAVConfig holds the WebDAV storage configuration
type WebDAVConfig struct {
	URL      string // WEBDAV_URL
	Username string // WEBDAV_USERNAME
	Password string // WEBDAV_PASSWORD
}

// GetWebDAVConfig loads WebDAV configuration from environment
func GetWebDAVConfig() (*WebDAVConfig, error) {
	rawURL := strings.TrimSpace(os.Getenv("WEBDAV_URL"))
	if rawURL == "" {
		return nil, ErrWebDAVNotConfigured
	}

	// Username and password are optional (no auth if not provided)
	return &WebDAVConfig{
		URL:      rawURL,
		Username: os.Getenv("WEBDAV_USERNAME"),
		Password: os.Getenv("WEBDAV_PASSWORD"),
	}, nil
}

// WebDAVStore stores objects as files below a WebDAV collection.
type WebDAVStore struct {
	base       *url.URL
	httpClient *http.Client
	client     *webdav.Client
}

// NewWebDAVStore connects a store to the collection at config.URL.
func NewWebDAVStore(config *WebDAVConfig) (*WebDAVStore, error) {
	base, err := url.Parse(strings.TrimRight(config.URL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid WebDAV URL: %w", err)
	}

	httpClient := newWebDAVHTTPClient(config)

	client, err := webdav.NewClient(httpClient, base.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create WebDAV client: %w", err)
	}

	return &WebDAVStore{base: base, httpClient: httpClient, client: client}, nil
}

// newWebDAVHTTPClient creates an HTTP client for WebDAV operations
func newWebDAVHTTPClient(config *WebDAVConfig) *http.Client {
	transport := http.DefaultTransport

	if config.Username != "" && config.Password != "" {
		transport = &basicAuthTransport{
			Username: config.Username,
			Password: config.Password,
			Base:     http.DefaultTransport,
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// basicAuthTransport adds HTTP Basic Authentication to all requests
type basicAuthTransport struct {
	Username string
	Password string
	Base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)

	return t.Base.RoundTrip(req)
}

// Put writes data to key, creating parent collections as needed. The body is
// sent with a known length so servers never store a partial object silently.
func (s *WebDAVStore) Put(ctx context.Context, key string, data []byte) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if err := s.ensureCollections(ctx, path.Dir(key)); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.entryURL(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("Failed to close WebDAV upload response body", "error", err)
		}
	}()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("failed to upload %s: HTTP %d", key, resp.StatusCode)
	}

	info, err := s.client.Stat(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to verify upload of %s: %w", key, err)
	}

	if info.Size != int64(len(data)) {
		return fmt.Errorf("%w: %s expected %d bytes, got %d", ErrUnexpectedObjectSize, key, len(data), info.Size)
	}

	logger.Debug("Stored object", "key", key, "size", len(data))

	return nil
}

func (s *WebDAVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	reader, err := s.client.Open(ctx, key)
	if err != nil {
		if isWebDAVNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}

	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("Failed to close WebDAV reader", "key", key, "error", err)
		}
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return data, nil
}

func (s *WebDAVStore) List(ctx context.Context, prefix string) ([]Object, error) {
	dir := strings.TrimSuffix(prefix, "/")
	if dir == "" {
		dir = "."
	}

	fileInfos, err := s.client.ReadDir(ctx, dir, false)
	if err != nil {
		if isWebDAVNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	var out []Object
	for _, fi := range fileInfos {
		if fi.IsDir {
			continue
		}

		name := path.Base(strings.TrimSuffix(fi.Path, "/"))
		if name == "" || name == "." || name == "/" {
			continue
		}

		// Hrefs come back URL-encoded on some servers.
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}

		out = append(out, Object{
			Key:     prefix + name,
			Size:    fi.Size,
			ModTime: fi.ModTime,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out, nil
}

func (s *WebDAVStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if err := s.client.RemoveAll(ctx, key); err != nil {
		if isWebDAVNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

func (s *WebDAVStore) ensureCollections(ctx context.Context, dir string) error {
	if dir == "." || dir == "" {
		return nil
	}

	current := ""
	for _, part := range strings.Split(dir, "/") {
		current = path.Join(current, part)

		info, err := s.client.Stat(ctx, current)
		if err == nil {
			if !info.IsDir {
				return fmt.Errorf("%w: %s is not a collection", ErrInvalidKey, current)
			}

			continue
		}

		if !isWebDAVNotFound(err) {
			return fmt.Errorf("failed to stat %s: %w", current, err)
		}

		if err := s.client.Mkdir(ctx, current); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", current, err)
		}
	}

	return nil
}

func (s *WebDAVStore) entryURL(key string) string {
	u := *s.base
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), key)
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}

	return u.String()
}

func isWebDAVNotFound(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, fs.ErrNotExist) {
		return true
	}

	message := strings.ToLower(err.Error())

	return strings.Contains(message, "404") || strings.Contains(message, "not found")
}
