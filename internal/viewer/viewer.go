// Package viewer wires acquisition, conversion and output into one viewer session.
package viewer

import (
	"context"
	"errors"
	"sync"

	"github.com/hyperjump/tapeview/internal/acquire"
	"github.com/hyperjump/tapeview/internal/archive"
	"github.com/hyperjump/tapeview/internal/convert"
	"github.com/hyperjump/tapeview/internal/decoder"
	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/output"
	"github.com/hyperjump/tapeview/internal/session"
	"github.com/hyperjump/tapeview/internal/storage"
	"go.uber.org/zap"
)

// InitErrorPrefix starts the text shown when the decoder cannot be loaded.
const InitErrorPrefix = "Error: Failed to load decoder module. "

// ErrNotReady is returned by every operation until Init has succeeded.
var ErrNotReady = errors.New("decoder module is not loaded")

// Snapshot is what the viewer currently shows.
type Snapshot struct {
	Session           string      `json:"session"`
	Title             string      `json:"title"`
	Ready             bool        `json:"ready"`
	Mode              models.Mode `json:"mode"`
	Charset           bool        `json:"charset"`
	CharsetApplicable bool        `json:"charset_applicable"`
	LocalDisabled     bool        `json:"local_disabled"`
	Loaded            bool        `json:"loaded"`
	Name              string      `json:"name,omitempty"`
	Source            string      `json:"source,omitempty"`
	Size              int         `json:"size"`
	TypeLabel         string      `json:"type_label,omitempty"`
	Text              string      `json:"text"`
	Failed            bool        `json:"failed"`
	CanSave           bool        `json:"can_save"`
	SaveName          string      `json:"save_name"`
}

type options struct {
	mode      string
	charset   bool
	remoteURL string
	member    *archive.Pattern
	outputDir string
	fetcher   acquire.Fetcher
	history   storage.History
	catalog   output.Indexer
	logger    *zap.Logger
}

// Option configures a Viewer.
type Option func(*options)

// WithMode selects the startup mode. Unknown values fall back to DUMP, empty
// selects the profile default.
func WithMode(mode string) Option {
	return func(o *options) { o.mode = mode }
}

// WithCharset sets the startup charset flag.
func WithCharset(on bool) Option {
	return func(o *options) { o.charset = on }
}

// WithRemoteURL fetches rawURL on Init and disables local input.
func WithRemoteURL(rawURL string) Option {
	return func(o *options) { o.remoteURL = rawURL }
}

// WithMemberPattern selects archive members by p instead of the profile's extension.
func WithMemberPattern(p archive.Pattern) Option {
	return func(o *options) { o.member = &p }
}

// WithOutputDir sets where saved listings are written.
func WithOutputDir(dir string) Option {
	return func(o *options) { o.outputDir = dir }
}

// WithFetcher sets the remote fetcher.
func WithFetcher(f acquire.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithHistory records saves in h.
func WithHistory(h storage.History) Option {
	return func(o *options) { o.history = h }
}

// WithCatalog indexes saves in idx.
func WithCatalog(idx output.Indexer) Option {
	return func(o *options) { o.catalog = idx }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Viewer is one viewer session.
type Viewer struct {
	profile    Profile
	loader     decoder.Loader
	remoteURL  string
	session    *session.Session
	controller *acquire.Controller
	output     *output.Manager
	logger     *zap.Logger

	mu      sync.Mutex
	ready   bool
	adapter *convert.Adapter
	result  convert.Result
}

// New creates a viewer for profile. It is inert until Init loads the decoder.
func New(profile Profile, loader decoder.Loader, opts ...Option) *Viewer {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	sess := session.New(models.ParseMode(o.mode, profile.DefaultMode))
	logger := o.logger.With(zap.String("viewer", profile.Kind), zap.String("session", sess.ID()))

	v := &Viewer{
		profile:   profile,
		loader:    loader,
		remoteURL: o.remoteURL,
		session:   sess,
		logger:    logger,
	}
	v.session.SetCharset(o.charset)

	acqOpts := []acquire.Option{
		acquire.WithRemoteFixed(o.remoteURL != ""),
		acquire.OnChange(v.refresh),
		acquire.WithLogger(logger),
	}
	if o.fetcher != nil {
		acqOpts = append(acqOpts, acquire.WithFetcher(o.fetcher))
	}
	pattern := profile.Pattern()
	if o.member != nil {
		pattern = *o.member
	}
	v.controller = acquire.New(v.session, pattern, acqOpts...)

	outOpts := []output.Option{output.WithLogger(logger)}
	if o.history != nil {
		outOpts = append(outOpts, output.WithHistory(o.history))
	}
	if o.catalog != nil {
		outOpts = append(outOpts, output.WithCatalog(o.catalog))
	}
	v.output = output.NewManager(o.outputDir, profile.Placeholder, outOpts...)
	return v
}

// Profile returns the viewer profile.
func (v *Viewer) Profile() Profile {
	return v.profile
}

// Init loads the decoder. On failure the error text is shown and the viewer
// stays inert. With a remote URL configured, it is fetched once loaded.
func (v *Viewer) Init(ctx context.Context) error {
	d, err := v.loader.Load(ctx)
	if err != nil {
		v.logger.Error("failed to load decoder", zap.Error(err))
		v.mu.Lock()
		v.result = convert.Result{Text: InitErrorPrefix + err.Error(), Failed: true}
		v.output.Update(v.result.Text, nil, "", false)
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	v.adapter = convert.NewAdapter(d, v.profile.Metadata, v.logger)
	v.ready = true
	v.mu.Unlock()
	v.refresh()

	if v.remoteURL != "" {
		v.controller.Acquire(ctx, acquire.Remote{URL: v.remoteURL})
	}
	return nil
}

// Ready reports whether Init succeeded.
func (v *Viewer) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Acquire loads src. A rejected source is reported in the Outcome, not as an error.
func (v *Viewer) Acquire(ctx context.Context, src acquire.Source) (acquire.Outcome, error) {
	if !v.Ready() {
		return acquire.Outcome{}, ErrNotReady
	}
	return v.controller.Acquire(ctx, src), nil
}

// SetMode selects mode and recomputes the text. The payload is kept; the
// message of a failed acquisition gives way to the plain result.
func (v *Viewer) SetMode(mode models.Mode) error {
	if !v.Ready() {
		return ErrNotReady
	}
	v.session.SetMode(mode)
	v.refresh()
	return nil
}

// SetCharset sets the charset flag and recomputes the text. The payload and
// mode are kept.
func (v *Viewer) SetCharset(on bool) error {
	if !v.Ready() {
		return ErrNotReady
	}
	v.session.SetCharset(on)
	v.refresh()
	return nil
}

// Save writes the displayed text. A blank proposedName uses the default name.
func (v *Viewer) Save(ctx context.Context, proposedName string) (*models.Artifact, error) {
	if !v.Ready() {
		return nil, ErrNotReady
	}
	return v.output.Save(ctx, proposedName)
}

// Snapshot returns the current view.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.session.State()
	snap := Snapshot{
		Session:           v.session.ID(),
		Title:             v.profile.Title,
		Ready:             v.ready,
		Mode:              st.Mode,
		Charset:           st.Charset,
		CharsetApplicable: v.profile.CharsetApplies(st.Mode),
		LocalDisabled:     v.controller.LocalDisabled(),
		TypeLabel:         v.result.TypeLabel,
		Text:              v.result.Text,
		Failed:            v.result.Failed,
		CanSave:           v.output.CanSave(),
		SaveName:          v.output.DefaultName(),
	}
	if st.Payload != nil {
		snap.Loaded = true
		snap.Name = st.Payload.Name()
		snap.Source = st.Payload.Source()
		snap.Size = st.Payload.Len()
	}
	return snap
}

// refresh recomputes the text from the session. It runs under v.mu so the
// last refresh always reflects the latest session state.
func (v *Viewer) refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.ready {
		return
	}
	st := v.session.State()
	charset := st.Charset && v.profile.CharsetApplies(st.Mode)
	if st.Message != "" {
		v.result = convert.Result{Text: st.Message, Failed: true}
	} else {
		v.result = v.adapter.Convert(st.Payload, st.Mode, charset)
	}
	v.output.Update(v.result.Text, st.Payload, st.Mode, charset)
}
