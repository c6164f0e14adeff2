package convert

import (
	"errors"
	"testing"

	"github.com/hyperjump/tapeview/internal/decoder"
	"github.com/hyperjump/tapeview/internal/models"
	"go.uber.org/zap"
)

type stubDecoder struct {
	text  string
	err   error
	panic any
	calls int
}

func (s *stubDecoder) Decode([]byte, models.Mode, bool) (string, error) {
	s.calls++
	if s.panic != nil {
		panic(s.panic)
	}
	return s.text, s.err
}

func TestConvert_noPayload(t *testing.T) {
	stub := &stubDecoder{text: "x"}
	res := NewAdapter(stub, true, zap.NewNop()).Convert(nil, models.ModeSP, false)
	if !res.NoInput || res.Text != "" || res.TypeLabel != "" {
		t.Errorf("unexpected result %+v", res)
	}
	if stub.calls != 0 {
		t.Error("decoder must not run without a payload")
	}
}

func TestConvert_decoderError(t *testing.T) {
	a := NewAdapter(&stubDecoder{err: errors.New("bad header")}, false, nil)
	res := a.Convert(models.NewPayload([]byte{1}, "a", "test"), models.ModeZ80, false)
	if !res.Failed || res.Text != "Error: Could not process file. bad header" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestConvert_recoversPanic(t *testing.T) {
	a := NewAdapter(&stubDecoder{panic: "index out of range"}, false, nil)
	res := a.Convert(models.NewPayload([]byte{1}, "a", "test"), models.ModeDump, false)
	if !res.Failed || res.Text != "Error: Could not process file. index out of range" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestConvert_isDeterministic(t *testing.T) {
	a := NewAdapter(decoder.Builtin{}, true, nil)
	p := models.NewPayload([]byte{0x01, 0x41, 0x42}, "prog", "test")
	first := a.Convert(p, models.ModeDump, true)
	second := a.Convert(p, models.ModeDump, true)
	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	if first.TypeLabel != "0x01 - Machine Code (Z80)" {
		t.Errorf("TypeLabel = %q", first.TypeLabel)
	}
}

func TestConvert_metadataDisabled(t *testing.T) {
	a := NewAdapter(&stubDecoder{text: "ok"}, false, nil)
	res := a.Convert(models.NewPayload([]byte{0x05}, "a", "test"), models.ModeZX80Basic, true)
	if res.TypeLabel != "" || res.Text != "ok" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestConvert_emptyPayloadHasNoLabel(t *testing.T) {
	a := NewAdapter(&stubDecoder{text: ""}, true, nil)
	res := a.Convert(models.NewPayload(nil, "empty", "test"), models.ModeDump, false)
	if res.TypeLabel != "" || res.NoInput {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTypeLabel(t *testing.T) {
	tests := map[byte]string{
		0x01: "0x01 - Machine Code (Z80)",
		0x02: "0x02 - BASIC (SP-5025) or BASIC (SA-5510)",
		0x05: "0x05 - BASIC (1Z-013B)",
		0xff: "0xff - Unknown Type",
		0x00: "0x00 - Unknown Type",
	}
	for b, want := range tests {
		if got := TypeLabel(b); got != want {
			t.Errorf("TypeLabel(%#x) = %q, want %q", b, got, want)
		}
	}
}
