// Package models defines the core data types shared by acquisition, dispatch and output.
package models

// Mode selects which textual interpretation the decoder applies to a payload.
type Mode string

const (
	ModeSA        Mode = "SA"
	ModeSP        Mode = "SP"
	Mode1Z        Mode = "1Z"
	ModeZ80       Mode = "Z80"
	ModeDump      Mode = "DUMP"
	ModeZX80Basic Mode = "ZX80BASIC"
)

// FallbackMode is selected when an external request names a mode that does not exist.
const FallbackMode = ModeDump

var allModes = []Mode{ModeSA, ModeSP, Mode1Z, ModeZ80, ModeDump, ModeZX80Basic}

// Modes returns every known mode in display order.
func Modes() []Mode {
	return append([]Mode(nil), allModes...)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	for _, known := range allModes {
		if m == known {
			return true
		}
	}
	return false
}

// Description returns a human readable name of the interpretation.
func (m Mode) Description() string {
	switch m {
	case ModeSA:
		return "BASIC (SA-5510)"
	case ModeSP:
		return "BASIC (SP-5025)"
	case Mode1Z:
		return "BASIC (1Z-013B)"
	case ModeZ80:
		return "Z80 disassembly"
	case ModeDump:
		return "Hex dump"
	case ModeZX80Basic:
		return "ZX80 BASIC"
	default:
		return "Unknown"
	}
}

// ParseMode maps an externally supplied mode code onto a Mode.
// Matching is exact and case-sensitive. An empty value selects def,
// any other unknown value selects FallbackMode.
func ParseMode(s string, def Mode) Mode {
	if s == "" {
		return def
	}
	if m := Mode(s); m.Valid() {
		return m
	}
	return FallbackMode
}
