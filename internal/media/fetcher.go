// Package media downloads images attached to mentions or named in manual launches.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultTimeout bounds an ad-hoc fetch.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxBytes caps the downloaded body.
	DefaultMaxBytes = 10 << 20 // 10MB
)

var (
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("unexpected media status")
	// ErrEmpty is returned when the response body is empty.
	ErrEmpty = errors.New("empty media body")
	// ErrTooLarge is returned when the body exceeds the configured cap.
	ErrTooLarge = errors.New("media exceeds size limit")
)

// Image is a downloaded media item.
type Image struct {
	Bytes       []byte
	Filename    string
	ContentType string
}

// Fetcher performs single bounded GET requests.
type Fetcher struct {
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64
	Now      func() time.Time
}

// NewFetcher creates a fetcher with the given timeout budget.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		Client:   &http.Client{},
		Timeout:  timeout,
		MaxBytes: DefaultMaxBytes,
		Now:      time.Now,
	}
}

// Fetch downloads url. Any failure is returned as an error; callers treat
// it as "no image" and carry on.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch media: empty url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	limit := f.maxBytes()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, ErrTooLarge
	}
	if len(body) == 0 {
		return nil, ErrEmpty
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	return &Image{
		Bytes:       body,
		Filename:    f.filename(),
		ContentType: contentType,
	}, nil
}

// filename is synthesized from the clock so uploads never collide.
func (f *Fetcher) filename() string {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return "image_" + strconv.FormatInt(now().UnixMilli(), 10) + ".png"
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return DefaultTimeout
}

func (f *Fetcher) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return DefaultMaxBytes
}
