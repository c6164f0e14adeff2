// Package convert runs the active decoder over the current payload and turns
// every failure into displayable text.
package convert

import (
	"fmt"

	"github.com/hyperjump/tapeview/internal/decoder"
	"github.com/hyperjump/tapeview/internal/models"
	"go.uber.org/zap"
)

// ProcessErrorPrefix starts the text shown when decoding fails.
const ProcessErrorPrefix = "Error: Could not process file. "

var typeLabels = map[byte]string{
	0x01: "Machine Code (Z80)",
	0x02: "BASIC (SP-5025) or BASIC (SA-5510)",
	0x05: "BASIC (1Z-013B)",
}

// Result is one conversion.
type Result struct {
	Text string
	// NoInput is set when there was no payload; Text is then empty.
	NoInput bool
	// Failed is set when Text carries an error message.
	Failed bool
	// TypeLabel describes the first payload byte when metadata is enabled.
	TypeLabel string
}

// Adapter dispatches payloads to a decoder. It keeps no state between calls.
type Adapter struct {
	decoder  decoder.Decoder
	metadata bool
	logger   *zap.Logger
}

// NewAdapter returns an Adapter. When metadata is set, results carry TypeLabel.
func NewAdapter(d decoder.Decoder, metadata bool, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{decoder: d, metadata: metadata, logger: logger}
}

// Convert renders payload in mode. It never panics.
func (a *Adapter) Convert(payload *models.Payload, mode models.Mode, charset bool) Result {
	if payload == nil {
		return Result{NoInput: true}
	}
	var res Result
	if a.metadata {
		if first, ok := payload.FirstByte(); ok {
			res.TypeLabel = TypeLabel(first)
		}
	}

	text, err := a.decode(payload.Bytes(), mode, charset)
	if err != nil {
		a.logger.Debug("conversion failed",
			zap.String("name", payload.Name()),
			zap.String("mode", string(mode)),
			zap.Error(err))
		res.Text = ProcessErrorPrefix + err.Error()
		res.Failed = true
		return res
	}
	res.Text = text
	return res
}

func (a *Adapter) decode(data []byte, mode models.Mode, charset bool) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return a.decoder.Decode(data, mode, charset)
}

// TypeLabel describes an MZF file type byte, for example "0x01 - Machine Code (Z80)".
func TypeLabel(b byte) string {
	label, ok := typeLabels[b]
	if !ok {
		label = "Unknown Type"
	}
	return fmt.Sprintf("0x%02x - %s", b, label)
}
