package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/charmap"
)

// Zip compression methods beyond store and deflate.
const (
	zipMethodBzip2 = 12
	zipMethodZstd  = 93
	zipMethodXz    = 95
)

// errReadCloser surfaces a decompressor construction error on first Read.
type errReadCloser struct{ err error }

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error             { return nil }

func registerZipDecompressors(zr *zip.Reader) {
	zr.RegisterDecompressor(zipMethodBzip2, func(r io.Reader) io.ReadCloser {
		bz2r, err := bzip2.NewReader(r, nil)
		if err != nil {
			return errReadCloser{err}
		}
		return bz2r
	})
	zr.RegisterDecompressor(zipMethodZstd, func(r io.Reader) io.ReadCloser {
		zsr, err := zstd.NewReader(r)
		if err != nil {
			return errReadCloser{err}
		}
		return zsr.IOReadCloser()
	})
	zr.RegisterDecompressor(zipMethodXz, func(r io.Reader) io.ReadCloser {
		xr, err := xz.NewReader(r)
		if err != nil {
			return errReadCloser{err}
		}
		return io.NopCloser(xr)
	})
}

// zipName returns the member name, decoding legacy CP437 names.
func zipName(f *zip.File) string {
	if !f.NonUTF8 {
		return f.Name
	}
	name, err := charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return name
}

func scanZip(ctx context.Context, data []byte, match func(string) bool) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}
	registerZipDecompressors(zr)

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		name := zipName(f)
		if !match(name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		body, err := readLimited(rc)
		rc.Close()
		if err != nil {
			return "", nil, err
		}
		return name, body, nil
	}
	return "", nil, nil
}
