// Package output holds the latest conversion text and saves it as a text file.
package output

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/storage"
	"go.uber.org/zap"
)

// TextExtension is appended to the payload name to form the default file name.
const TextExtension = ".txt"

// Indexer adds saved listings to a search catalog.
type Indexer interface {
	Index(ctx context.Context, l *models.Listing) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithHistory records every save in h.
func WithHistory(h storage.History) Option {
	return func(m *Manager) { m.history = h }
}

// WithCatalog indexes every save in idx.
func WithCatalog(idx Indexer) Option {
	return func(m *Manager) { m.catalog = idx }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager tracks the displayed text and whether a payload is present.
type Manager struct {
	mu          sync.Mutex
	dir         string
	placeholder string
	text        string
	payload     *models.Payload
	mode        models.Mode
	charset     bool

	history storage.History
	catalog Indexer
	logger  *zap.Logger
}

// NewManager returns a Manager writing into dir. placeholder names the file
// when the payload has no display name.
func NewManager(dir, placeholder string, opts ...Option) *Manager {
	m := &Manager{dir: dir, placeholder: placeholder}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Update replaces the displayed text and the payload it was produced from.
func (m *Manager) Update(text string, payload *models.Payload, mode models.Mode, charset bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.payload = payload
	m.mode = mode
	m.charset = charset
}

// Text returns the displayed text.
func (m *Manager) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// CanSave reports whether the displayed text is non-blank and a payload is present.
func (m *Manager) CanSave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canSave()
}

func (m *Manager) canSave() bool {
	return strings.TrimSpace(m.text) != "" && m.payload != nil
}

// DefaultName is the file name offered for a save, <name>.txt.
func (m *Manager) DefaultName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultName()
}

func (m *Manager) defaultName() string {
	name := m.placeholder
	if m.payload != nil && m.payload.Name() != "" {
		name = m.payload.Name()
	}
	return name + TextExtension
}

// Save writes the displayed text to the output directory under proposedName,
// or DefaultName when it is blank. Blank text is a no-op that returns nil, nil.
func (m *Manager) Save(ctx context.Context, proposedName string) (*models.Artifact, error) {
	m.mu.Lock()
	if strings.TrimSpace(m.text) == "" {
		m.mu.Unlock()
		m.logger.Info("nothing to save")
		return nil, nil
	}
	text, payload, mode, charset := m.text, m.payload, m.mode, m.charset
	name := fileName(proposedName, m.defaultName())
	m.mu.Unlock()

	target := filepath.Join(m.dir, name)
	if err := writeFile(m.dir, target, text); err != nil {
		return nil, err
	}

	a := &models.Artifact{
		ID:        artifactID(target),
		Name:      name,
		Path:      target,
		Mode:      mode,
		Charset:   charset,
		Size:      int64(len(text)),
		CreatedAt: time.Now(),
	}
	if payload != nil {
		a.Source = payload.Source()
	}
	m.logger.Info("listing saved", zap.String("path", target), zap.Int64("size", a.Size))

	if m.history != nil {
		if err := m.history.Record(ctx, a); err != nil {
			m.logger.Warn("failed to record save", zap.Error(err))
		}
	}
	if m.catalog != nil {
		l := &models.Listing{ID: a.ID, Name: models.StripExtension(name), Mode: string(mode), Source: a.Source, Text: text}
		if err := m.catalog.Index(ctx, l); err != nil {
			m.logger.Warn("failed to index save", zap.Error(err))
		}
	}
	return a, nil
}

// artifactID derives a stable id from the saved file path, so saving to the
// same file again replaces its history entry and catalog listing.
func artifactID(target string) string {
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(target)))
	return hex.EncodeToString(sum[:16])
}

// fileName reduces proposed to its base element, falling back to def.
func fileName(proposed, def string) string {
	proposed = strings.TrimSpace(proposed)
	if proposed == "" {
		return def
	}
	base := filepath.Base(filepath.FromSlash(proposed))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return def
	}
	return base
}

// writeFile writes text to target through a temporary file in dir.
func writeFile(dir, target, text string) error {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".tapeview-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to save %s: %w", target, err)
	}
	return nil
}
