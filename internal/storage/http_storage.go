// Package storage fetches remote images referenced by image_url.
package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "go-crop-inspector/internal/errors"
)

const (
	defaultMaxImageBytes = 32 << 20
	fetchAttempts        = 3
)

// ImageSource returns the raw bytes of the image at ref.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPImageFetcher downloads images over HTTP(S), retrying transient
// failures.
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// NewHTTPImageFetcher creates a fetcher whose whole download, retries
// included, is bounded by the caller's context and each attempt by timeout.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
		TLSClientConfig:        &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		backoff:  time.Second,
	}
}

// Fetch implements ImageSource. 4xx responses are not retried; 5xx and
// transport errors are retried with linear backoff.
func (h *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("Image download timed out", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		data, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, apperrors.NewTimeoutError("Image download timed out", lastErr)
	}
	if apperrors.IsType(lastErr, apperrors.ErrorTypeInput) {
		return nil, lastErr
	}
	return nil, apperrors.NewNetworkError("Failed to fetch image",
		fmt.Errorf("failed after %d attempts: %w", fetchAttempts, lastErr))
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, apperrors.NewInputError("Invalid image URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/gif, */*")
	req.Header.Set("User-Agent", "Go-Crop-Inspector/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	return readLimited(resp.Body, h.maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, false, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	return data, false, nil
}
