// Package decoder turns raw dump bytes into text for a conversion mode.
package decoder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hyperjump/tapeview/internal/models"
)

// mzfHeaderSize is the length of the Sharp MZ tape header preceding the body.
const mzfHeaderSize = 128

// ErrTruncated is returned when the data ends in the middle of a structure.
var ErrTruncated = errors.New("unexpected end of data")

// Decoder renders data as text according to mode. The charset flag selects an
// alternate character mapping where the mode has one.
type Decoder interface {
	Decode(data []byte, mode models.Mode, charset bool) (string, error)
}

// Loader initializes a Decoder. A Loader error means no conversions can run.
type Loader interface {
	Load(ctx context.Context) (Decoder, error)
}

// Builtin decodes every mode natively.
type Builtin struct{}

// Load implements Loader.
func (b Builtin) Load(context.Context) (Decoder, error) {
	return b, nil
}

// Decode implements Decoder.
func (Builtin) Decode(data []byte, mode models.Mode, charset bool) (string, error) {
	switch mode {
	case models.ModeSA:
		return detokenizeMZ(data, basicSA5510)
	case models.ModeSP:
		return detokenizeMZ(data, basicSP5025)
	case models.Mode1Z:
		return detokenizeMZ(data, basic1Z013B)
	case models.ModeZ80:
		return disassembleMZF(data, charset)
	case models.ModeDump:
		return hexDump(data, charset), nil
	case models.ModeZX80Basic:
		return listZX80(data, charset)
	default:
		return "", fmt.Errorf("unsupported mode %q", mode)
	}
}

// byteReader reads little-endian values and reports ErrTruncated past the end.
type byteReader struct {
	data []byte
	off  int
}

func (r *byteReader) u8() (byte, error) {
	if r.off >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *byteReader) u16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}
