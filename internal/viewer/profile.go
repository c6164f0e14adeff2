package viewer

import (
	"fmt"

	"github.com/hyperjump/tapeview/internal/archive"
	"github.com/hyperjump/tapeview/internal/models"
)

// Profile describes what one viewer variant supports.
type Profile struct {
	Kind  string
	Title string
	// MemberExt selects the archive member to load.
	MemberExt string
	// Metadata enables the first-byte type label.
	Metadata    bool
	DefaultMode models.Mode
	// CharsetModes lists the modes the charset flag applies to. Nil means all.
	CharsetModes []models.Mode
	// Placeholder names saved files when the payload has no name.
	Placeholder string
}

// MZF is the Sharp MZ viewer.
var MZF = Profile{
	Kind:         "mzf",
	Title:        "Sharp MZ File Viewer",
	MemberExt:    ".mzf",
	Metadata:     true,
	DefaultMode:  models.ModeSP,
	CharsetModes: []models.Mode{models.ModeDump, models.ModeZ80},
	Placeholder:  "MZFBasic",
}

// ZX is the Sinclair ZX viewer.
var ZX = Profile{
	Kind:        "zx",
	Title:       "Sinclair ZX File Viewer",
	MemberExt:   ".tap",
	DefaultMode: models.ModeZX80Basic,
	Placeholder: "ZXBasic",
}

// ProfileFor returns the profile named kind.
func ProfileFor(kind string) (Profile, error) {
	switch kind {
	case MZF.Kind:
		return MZF, nil
	case ZX.Kind:
		return ZX, nil
	}
	return Profile{}, fmt.Errorf("unknown viewer %q", kind)
}

// Pattern is the archive member pattern for this viewer.
func (p Profile) Pattern() archive.Pattern {
	return archive.ExtensionPattern(p.MemberExt)
}

// CharsetApplies reports whether the charset flag affects mode.
func (p Profile) CharsetApplies(mode models.Mode) bool {
	if p.CharsetModes == nil {
		return true
	}
	for _, m := range p.CharsetModes {
		if m == mode {
			return true
		}
	}
	return false
}
