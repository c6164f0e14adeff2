// Package fetch downloads dumps over HTTP, optionally through a CORS relay.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hyperjump/tapeview/internal/archive"
	"github.com/hyperjump/tapeview/internal/models"
	"go.uber.org/zap"
)

// DefaultRelay is prefixed to every requested URL unless overridden.
const DefaultRelay = "https://corsproxy.io/?"

// fallbackName is used when no display name can be derived from the URL.
const fallbackName = "File"

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Download is a fetched resource.
type Download struct {
	URL  string
	Data []byte
	// Archive is true when the URL path names an archive container.
	Archive   bool
	Container archive.Container
	// Compressed is true when the URL path names a single compressed stream.
	Compressed bool
	// Name is the final path segment of the URL, used to classify the body.
	Name string
	// DisplayName is Name without its extension, or "File".
	DisplayName string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRelay overrides the relay prefix. An empty relay fetches directly.
func WithRelay(relay string) Option {
	return func(f *Fetcher) {
		f.relay = relay
	}
}

// WithTimeout sets a per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// Fetcher retrieves remote dumps.
type Fetcher struct {
	client  *http.Client
	relay   string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Fetcher using DefaultRelay and no timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: http.DefaultClient,
		relay:  DefaultRelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Fetch downloads rawURL through the relay.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	target := f.relay + rawURL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Debug("fetch rejected",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, archive.MaxMemberSize+1))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if len(data) > archive.MaxMemberSize {
		return nil, &NetworkError{Err: archive.ErrTooLarge}
	}

	d := describe(rawURL)
	d.Data = data
	f.logger.Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	return d, nil
}

// describe classifies rawURL by the suffix of its path, or of the raw string when
// it is not an absolute URL. Only absolute URLs yield a display name.
func describe(rawURL string) *Download {
	d := &Download{URL: rawURL, DisplayName: fallbackName}

	u, err := url.Parse(rawURL)
	absolute := err == nil && u.Scheme != ""
	if absolute {
		d.Name = u.Path[strings.LastIndex(u.Path, "/")+1:]
	} else {
		d.Name = path.Base(rawURL)
	}

	subject := d.Name
	if subject == "" {
		subject = rawURL
	}
	d.Container, d.Archive = archive.ContainerFor(subject)
	d.Compressed = !d.Archive && archive.IsCompressed(subject)

	if absolute {
		if stem := models.StripExtension(d.Name); strings.TrimSpace(stem) != "" {
			d.DisplayName = stem
		}
	}
	return d
}
