package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultMaxImageBytes bounds the size of a downloaded image.
const DefaultMaxImageBytes = 32 << 20

var (
	// ErrFetchFailed is returned when an image could not be downloaded.
	ErrFetchFailed = errors.New("image fetch failed")

	// ErrImageTooLarge is returned when a response body exceeds the size cap.
	ErrImageTooLarge = errors.New("image too large")
)

// ImageFetcher downloads and decodes a remote image
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// HTTPImageFetcher implements ImageFetcher with retries on transient errors
type HTTPImageFetcher struct {
	client   *http.Client
	clock    clockwork.Clock
	backoff  time.Duration
	attempts int
	maxBytes int64
}

// HTTPFetcherOption configures an HTTPImageFetcher
type HTTPFetcherOption func(*HTTPImageFetcher)

// WithFetchTimeout sets the overall per-request timeout
func WithFetchTimeout(d time.Duration) HTTPFetcherOption {
	return func(h *HTTPImageFetcher) { h.client.Timeout = d }
}

// WithClock sets the clock used for retry backoff
func WithClock(c clockwork.Clock) HTTPFetcherOption {
	return func(h *HTTPImageFetcher) { h.clock = c }
}

// WithBackoff sets the base retry delay; attempt n waits n*base.
func WithBackoff(base time.Duration) HTTPFetcherOption {
	return func(h *HTTPImageFetcher) { h.backoff = base }
}

// WithMaxImageBytes bounds the downloaded body size
func WithMaxImageBytes(n int64) HTTPFetcherOption {
	return func(h *HTTPImageFetcher) { h.maxBytes = n }
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts ...HTTPFetcherOption) *HTTPImageFetcher {
	transport := &http.Transport{
		// Connection pooling sized for one image at a time
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		clock:    clockwork.NewRealClock(),
		backoff:  time.Second,
		attempts: 3,
		maxBytes: DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchImage downloads imageURL, retrying network errors and 5xx responses
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/png, image/jpeg, image/bmp, image/tiff, */*")
	req.Header.Set("User-Agent", "Heatmap-Inspector/1.0")

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < h.attempts; attempt++ {
		resp, err = h.client.Do(req)
		if err != nil {
			lastErr = err
		}

		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}

		if err == nil {
			resp.Body.Close()

			switch {
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
				resp = nil
			case resp.StatusCode >= 400:
				// 4xx client errors are non-retryable
				return nil, fmt.Errorf("%w: client error: status code %d", ErrFetchFailed, resp.StatusCode)
			default:
				// 204, 206 and unfollowed redirects carry no usable image
				return nil, fmt.Errorf("%w: unexpected status code %d", ErrFetchFailed, resp.StatusCode)
			}
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
		}

		if attempt < h.attempts-1 {
			select {
			case <-h.clock.After(time.Duration(attempt+1) * h.backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
			}
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = errors.New("unknown error")
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetchFailed, h.attempts, lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrFetchFailed, err)
	}
	if int64(len(body)) > h.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrImageTooLarge, h.maxBytes)
	}

	img, _, err := DecodeImage(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return img, nil
}
