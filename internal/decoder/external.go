package decoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hyperjump/tapeview/internal/models"
)

// External decodes by running a command. The dump is written to its stdin and
// the mode and charset flag are appended to Args; stdout is the text.
type External struct {
	Command string
	Args    []string
	// Timeout bounds a single conversion. Zero means no limit.
	Timeout time.Duration

	path string
}

// Load resolves the command on PATH.
func (e *External) Load(context.Context) (Decoder, error) {
	path, err := exec.LookPath(e.Command)
	if err != nil {
		return nil, fmt.Errorf("%s is not installed", e.Command)
	}
	loaded := *e
	loaded.path = path
	return &loaded, nil
}

// Decode implements Decoder.
func (e *External) Decode(data []byte, mode models.Mode, charset bool) (string, error) {
	ctx := context.Background()
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	name := e.path
	if name == "" {
		name = e.Command
	}
	flag := "off"
	if charset {
		flag = "on"
	}
	args := append(append([]string{}, e.Args...), string(mode), flag)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w", msg, err)
		}
		return "", err
	}
	return stdout.String(), nil
}
