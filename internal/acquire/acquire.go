// Package acquire turns an input source into the session payload.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tapeview/internal/archive"
	"github.com/hyperjump/tapeview/internal/fetch"
	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/session"
	"go.uber.org/zap"
)

// Messages shown in place of the output when an acquisition fails.
const (
	FetchErrorPrefix      = "Error: Could not fetch file from URL. "
	ExtractErrorPrefix    = "Error: Failed to extract file from ZIP. "
	DecompressErrorPrefix = "Error: Failed to decompress file. "
	NoMatchErrorPrefix    = "Error: "
)

// ErrLocalDisabled is returned for local sources while a startup URL is configured.
var ErrLocalDisabled = errors.New("local input is disabled while a remote URL is configured")

// ReadError reports a local file that could not be read. It returns the viewer
// to idle without an error message.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Status is the result of an acquisition.
type Status int

const (
	// StatusIdle means the payload slot is empty and no error is shown.
	StatusIdle Status = iota
	// StatusLoaded means a new payload was committed.
	StatusLoaded
	// StatusFailed means the payload was cleared and Message holds the error text.
	StatusFailed
	// StatusDiscarded means a newer acquisition superseded this one.
	StatusDiscarded
	// StatusRejected means the source was refused and nothing changed.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	case StatusDiscarded:
		return "discarded"
	case StatusRejected:
		return "rejected"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome describes one acquisition.
type Outcome struct {
	Status  Status
	Payload *models.Payload
	// Message is the text to show in place of the output for StatusFailed.
	Message string
	Err     error
}

// Fetcher retrieves remote dumps.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Download, error)
}

// Extractor pulls one member out of an archive.
type Extractor interface {
	Extract(ctx context.Context, data []byte, container archive.Container, pattern archive.Pattern) (*archive.Member, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithFetcher sets the remote fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Controller) { c.fetcher = f }
}

// WithExtractor sets the archive extractor.
func WithExtractor(e Extractor) Option {
	return func(c *Controller) { c.extractor = e }
}

// WithRemoteFixed rejects local sources for the life of the controller.
func WithRemoteFixed(fixed bool) Option {
	return func(c *Controller) { c.remoteFixed = fixed }
}

// OnChange registers fn to run after every committed change of the payload slot.
func OnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// Controller is the only writer of the session payload.
type Controller struct {
	session     *session.Session
	pattern     archive.Pattern
	fetcher     Fetcher
	extractor   Extractor
	remoteFixed bool
	onChange    func()
	logger      *zap.Logger
}

// New creates a controller writing to sess. Archive members are selected by pattern.
func New(sess *session.Session, pattern archive.Pattern, opts ...Option) *Controller {
	c := &Controller{
		session: sess,
		pattern: pattern,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.fetcher == nil {
		c.fetcher = fetch.New(fetch.WithLogger(c.logger))
	}
	if c.extractor == nil {
		c.extractor = archive.NewExtractor(c.logger)
	}
	return c
}

// LocalDisabled reports whether local sources are rejected.
func (c *Controller) LocalDisabled() bool {
	return c.remoteFixed
}

// Acquire loads src into the session. It never panics; failures are reported in
// the Outcome and leave the payload slot empty.
func (c *Controller) Acquire(ctx context.Context, src Source) Outcome {
	if c.remoteFixed && isLocal(src) {
		return Outcome{Status: StatusRejected, Err: ErrLocalDisabled}
	}
	token := c.session.Begin()
	log := c.logger.With(zap.Uint64("token", token), zap.String("source", src.sourceKind()))

	switch s := src.(type) {
	case None, *None:
		return c.clear(token, log, Outcome{Status: StatusIdle})

	case LocalFile:
		return c.acquireLocal(ctx, token, log, s.Path)
	case *LocalFile:
		return c.acquireLocal(ctx, token, log, s.Path)

	case Upload:
		return c.acquireUpload(ctx, token, log, s)
	case *Upload:
		return c.acquireUpload(ctx, token, log, *s)

	case Remote:
		return c.acquireRemote(ctx, token, log, s.URL)
	case *Remote:
		return c.acquireRemote(ctx, token, log, s.URL)
	}
	return c.clear(token, log, Outcome{Status: StatusIdle, Err: fmt.Errorf("unknown source %T", src)})
}

func (c *Controller) acquireLocal(ctx context.Context, token uint64, log *zap.Logger, p string) Outcome {
	data, err := readFile(p)
	if err != nil {
		log.Debug("local read failed", zap.String("path", p), zap.Error(err))
		return c.clear(token, log, Outcome{Status: StatusIdle, Err: &ReadError{Path: p, Err: err}})
	}
	name := filepath.Base(p)
	return c.resolve(ctx, token, log, name, data, p, "")
}

func (c *Controller) acquireUpload(ctx context.Context, token uint64, log *zap.Logger, u Upload) Outcome {
	name := filepath.Base(filepath.FromSlash(u.Name))
	return c.resolve(ctx, token, log, name, u.Data, u.Name, "")
}

func (c *Controller) acquireRemote(ctx context.Context, token uint64, log *zap.Logger, rawURL string) Outcome {
	d, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		log.Info("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return c.fail(token, log, FetchErrorPrefix+err.Error(), err)
	}
	if !c.session.Current(token) {
		log.Debug("acquisition superseded during fetch", zap.String("url", rawURL))
		return Outcome{Status: StatusDiscarded}
	}
	if !d.Archive && !d.Compressed {
		return c.commit(token, log, models.NewPayload(d.Data, d.DisplayName, rawURL))
	}
	name := d.Name
	if _, ok := archive.ContainerFor(name); !ok && !archive.IsCompressed(name) {
		// Classified from the raw URL; keep its suffixes so the decompressor
		// and the extractor recognize the content.
		name = suffixChain(rawURL)
	}
	return c.resolve(ctx, token, log, name, d.Data, rawURL, d.DisplayName)
}

// suffixChain returns the extensions of the last name-like element of rawURL,
// so "https://host/?f=dump.mzf.gz" yields ".mzf.gz".
func suffixChain(rawURL string) string {
	tail := rawURL[strings.LastIndexAny(rawURL, "/?=&")+1:]
	if i := strings.Index(tail, "."); i >= 0 {
		return tail[i:]
	}
	return tail
}

// resolve classifies data by name: compressed streams are unwrapped and
// classified again, archives go through the extractor, anything else is the
// payload. fallback replaces an empty display name.
func (c *Controller) resolve(ctx context.Context, token uint64, log *zap.Logger, name string, data []byte, source, fallback string) Outcome {
	for archive.IsCompressed(name) {
		inner, out, err := archive.Decompress(name, data)
		if err != nil {
			return c.fail(token, log, DecompressErrorPrefix+err.Error(), err)
		}
		log.Debug("decompressed", zap.String("from", name), zap.String("to", inner), zap.Int("bytes", len(out)))
		name, data = inner, out
	}

	if container, ok := archive.ContainerFor(name); ok {
		m, err := c.extractor.Extract(ctx, data, container, c.pattern)
		if err != nil {
			var noMatch *archive.NoMatchError
			if errors.As(err, &noMatch) {
				return c.fail(token, log, NoMatchErrorPrefix+err.Error(), err)
			}
			return c.fail(token, log, ExtractErrorPrefix+err.Error(), err)
		}
		return c.commit(token, log, models.NewPayload(m.Data, m.DisplayName, source))
	}

	display := models.StripExtension(path.Base(filepath.ToSlash(name)))
	if display == "" {
		display = fallback
	}
	return c.commit(token, log, models.NewPayload(data, display, source))
}

func (c *Controller) commit(token uint64, log *zap.Logger, p *models.Payload) Outcome {
	if !c.session.Commit(token, p) {
		log.Debug("acquisition superseded, result discarded")
		return Outcome{Status: StatusDiscarded}
	}
	log.Info("payload loaded", zap.String("name", p.Name()), zap.Int("bytes", p.Len()))
	c.changed()
	return Outcome{Status: StatusLoaded, Payload: p}
}

func (c *Controller) fail(token uint64, log *zap.Logger, message string, err error) Outcome {
	if !c.session.Fail(token, message) {
		log.Debug("acquisition superseded, failure discarded", zap.Error(err))
		return Outcome{Status: StatusDiscarded, Err: err}
	}
	c.changed()
	return Outcome{Status: StatusFailed, Message: message, Err: err}
}

func (c *Controller) clear(token uint64, log *zap.Logger, out Outcome) Outcome {
	if !c.session.Clear(token) {
		log.Debug("acquisition superseded, result discarded", zap.Stringer("status", out.Status))
		return Outcome{Status: StatusDiscarded, Err: out.Err}
	}
	c.changed()
	return out
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func readFile(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, archive.MaxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > archive.MaxMemberSize {
		return nil, archive.ErrTooLarge
	}
	return data, nil
}
