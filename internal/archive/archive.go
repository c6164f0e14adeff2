// Package archive extracts the first matching member from zip-like containers
// and unwraps single-stream compressed dumps.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/hyperjump/tapeview/internal/models"
	"go.uber.org/zap"
)

// MaxMemberSize caps how many bytes are materialized from one member or stream.
const MaxMemberSize = 64 << 20

// Container identifies an archive format by its file suffix.
type Container string

const (
	ContainerZip Container = ".zip"
	Container7z  Container = ".7z"
	ContainerRar Container = ".rar"
)

var containers = []Container{ContainerZip, Container7z, ContainerRar}

// ContainerFor returns the container named by the suffix of name, compared case-insensitively.
func ContainerFor(name string) (Container, bool) {
	lower := strings.ToLower(name)
	for _, c := range containers {
		if strings.HasSuffix(lower, string(c)) {
			return c, true
		}
	}
	return "", false
}

// ErrTooLarge is returned when a member or stream exceeds MaxMemberSize.
var ErrTooLarge = errors.New("content exceeds size limit")

// NoMatchError is returned when no member name matches the pattern.
type NoMatchError struct {
	Pattern string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("No %s file found in ZIP archive.", e.Pattern)
}

// CorruptArchiveError is returned when the archive cannot be opened or a member cannot be read.
type CorruptArchiveError struct {
	Container Container
	Err       error
}

func (e *CorruptArchiveError) Error() string {
	return e.Err.Error()
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Err
}

// Pattern selects archive members by name.
type Pattern struct {
	re   *regexp.Regexp
	desc string
}

// CompilePattern compiles a member name expression such as `\.mzf$`. Matching is
// case-insensitive. The description shown to users is the expression without
// its escapes and anchors, so `\.mzf$` reads ".mzf".
func CompilePattern(expr string) (Pattern, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile member pattern %q: %w", expr, err)
	}
	desc := strings.NewReplacer(`\`, "", "^", "", "$", "").Replace(expr)
	return Pattern{re: re, desc: desc}, nil
}

// ExtensionPattern returns a pattern matching names ending with ext.
func ExtensionPattern(ext string) Pattern {
	ext = "." + strings.TrimPrefix(ext, ".")
	return Pattern{
		re:   regexp.MustCompile("(?i)" + regexp.QuoteMeta(ext) + "$"),
		desc: ext,
	}
}

// Match reports whether the member name matches.
func (p Pattern) Match(name string) bool {
	return p.re != nil && p.re.MatchString(name)
}

// String returns the human readable description of the pattern.
func (p Pattern) String() string {
	return p.desc
}

// Member is the extraction result.
type Member struct {
	// Name is the member path inside the archive.
	Name string
	// DisplayName is the base name of the member with its extension stripped.
	DisplayName string
	Data        []byte
}

// scanFunc walks the members of an archive in native order and returns the
// name and content of the first member accepted by match.
type scanFunc func(ctx context.Context, data []byte, match func(name string) bool) (string, []byte, error)

// Extractor opens archives held in memory.
type Extractor struct {
	logger   *zap.Logger
	scanners map[Container]scanFunc
}

// NewExtractor returns an Extractor for zip, 7z and rar containers.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		logger: logger,
		scanners: map[Container]scanFunc{
			ContainerZip: scanZip,
			Container7z:  scanSevenZip,
			ContainerRar: scanRar,
		},
	}
}

// Extract returns the first member of the archive in data whose name matches pattern.
// Ties are broken purely by the archive's enumeration order.
func (e *Extractor) Extract(ctx context.Context, data []byte, container Container, pattern Pattern) (*Member, error) {
	scan, ok := e.scanners[container]
	if !ok {
		return nil, &CorruptArchiveError{Container: container, Err: fmt.Errorf("unsupported archive type %q", container)}
	}
	name, body, err := scan(ctx, data, pattern.Match)
	if err != nil {
		var corrupt *CorruptArchiveError
		if !errors.As(err, &corrupt) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			err = &CorruptArchiveError{Container: container, Err: err}
		}
		return nil, err
	}
	if name == "" {
		e.logger.Debug("no archive member matched",
			zap.String("container", string(container)),
			zap.String("pattern", pattern.String()))
		return nil, &NoMatchError{Pattern: pattern.String()}
	}
	e.logger.Debug("archive member extracted",
		zap.String("container", string(container)),
		zap.String("member", name),
		zap.Int("bytes", len(body)))
	return &Member{
		Name:        name,
		DisplayName: models.StripExtension(path.Base(name)),
		Data:        body,
	}, nil
}

// readLimited reads r fully, failing once MaxMemberSize is exceeded.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxMemberSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
