// Package session holds the state of one viewer session: the current payload slot,
// the selected mode, the charset flag and the acquisition token.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/tapeview/internal/models"
)

// Session is the single source of truth for what is loaded and how it is viewed.
// Only the acquisition controller writes the payload slot.
type Session struct {
	mu      sync.Mutex
	id      string
	payload *models.Payload
	mode    models.Mode
	charset bool
	message string
	token   uint64
}

// State is a consistent copy of the session taken under one lock.
type State struct {
	Payload *models.Payload
	Mode    models.Mode
	Charset bool
	// Message is the error text of the last failed acquisition. It is shown until
	// the next acquisition or mode or charset change.
	Message string
}

// New creates a session with mode selected and no payload.
func New(mode models.Mode) *Session {
	return &Session{
		id:   uuid.NewString(),
		mode: mode,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Begin starts a new acquisition and returns its token. Any acquisition that
// began earlier is superseded from this point on.
func (s *Session) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token++
	return s.token
}

// Current reports whether token belongs to the most recent acquisition.
func (s *Session) Current(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token == s.token
}

// Commit stores p as the current payload if token is still current.
// It returns false and leaves the slot untouched when token was superseded.
func (s *Session) Commit(token uint64, p *models.Payload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		return false
	}
	s.payload = p
	s.message = ""
	return true
}

// Clear empties the payload slot if token is still current.
func (s *Session) Clear(token uint64) bool {
	return s.Commit(token, nil)
}

// Fail empties the payload slot and records message if token is still current.
func (s *Session) Fail(token uint64, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		return false
	}
	s.payload = nil
	s.message = message
	return true
}

// Payload returns the current payload or nil.
func (s *Session) Payload() *models.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// Mode returns the selected mode.
func (s *Session) Mode() models.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode selects m. The payload is not touched; a failure message from the
// last acquisition is dropped.
func (s *Session) SetMode(m models.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	s.message = ""
}

// Charset returns the charset flag.
func (s *Session) Charset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charset
}

// SetCharset sets the charset flag. The payload and mode are not touched; a
// failure message from the last acquisition is dropped.
func (s *Session) SetCharset(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charset = on
	s.message = ""
}

// State returns payload, mode, flag and failure message as one consistent copy.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Payload: s.payload, Mode: s.mode, Charset: s.charset, Message: s.message}
}
