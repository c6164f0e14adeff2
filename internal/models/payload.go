package models

import (
	"path"
	"strings"
)

// Payload is the raw binary dump currently loaded, independent of how it was acquired.
// It is immutable once created; a new acquisition replaces it wholesale.
type Payload struct {
	data   []byte
	name   string
	source string
}

// NewPayload copies data into a new payload. name is the display name with its
// extension already stripped, source describes where the bytes came from.
func NewPayload(data []byte, name, source string) *Payload {
	return &Payload{
		data:   append([]byte(nil), data...),
		name:   name,
		source: source,
	}
}

// Bytes returns a copy of the payload bytes.
func (p *Payload) Bytes() []byte {
	return append([]byte(nil), p.data...)
}

// Len returns the payload size in bytes.
func (p *Payload) Len() int {
	return len(p.data)
}

// Name returns the derived display name. It may be empty.
func (p *Payload) Name() string {
	return p.name
}

// Source returns the file path or URL the payload was acquired from.
func (p *Payload) Source() string {
	return p.source
}

// FirstByte returns the first payload byte, used for the type metadata label.
func (p *Payload) FirstByte() (byte, bool) {
	if len(p.data) == 0 {
		return 0, false
	}
	return p.data[0], true
}

// StripExtension removes the last extension of the final element of name,
// so "dir/GAME.MZF" becomes "dir/GAME" and "tape.tar.gz" becomes "tape.tar".
func StripExtension(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
