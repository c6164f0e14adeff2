package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

type streamOpener func(r io.Reader) (io.ReadCloser, error)

// streamFormats is ordered so that longer suffixes are tried first.
var streamFormats = []struct {
	suffix string
	open   streamOpener
}{
	{".zst", func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	}},
	{".bz2", func(r io.Reader) (io.ReadCloser, error) {
		return bzip2.NewReader(r, nil)
	}},
	{".lz4", func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(r)), nil
	}},
	{".gz", func(r io.Reader) (io.ReadCloser, error) {
		return pgzip.NewReader(r)
	}},
	{".xz", func(r io.Reader) (io.ReadCloser, error) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	}},
	{".br", func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(brotli.NewReader(r)), nil
	}},
}

// IsCompressed reports whether name carries a single-stream compression suffix.
func IsCompressed(name string) bool {
	_, ok := compressionSuffix(name)
	return ok
}

func compressionSuffix(name string) (int, bool) {
	lower := strings.ToLower(name)
	for i, f := range streamFormats {
		if strings.HasSuffix(lower, f.suffix) {
			return i, true
		}
	}
	return 0, false
}

// Decompress unwraps a single compressed stream. It returns the inner name, which is
// name without the compression suffix, and the decompressed bytes. Names without a
// known suffix are returned unchanged.
func Decompress(name string, data []byte) (string, []byte, error) {
	i, ok := compressionSuffix(name)
	if !ok {
		return name, data, nil
	}
	format := streamFormats[i]
	inner := name[:len(name)-len(format.suffix)]

	rc, err := format.open(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("open %s stream: %w", format.suffix, err)
	}
	defer rc.Close()

	out, err := readLimited(rc)
	if err != nil {
		return "", nil, fmt.Errorf("decompress %s stream: %w", format.suffix, err)
	}
	return inner, out, nil
}
