package archive

import (
	"bytes"
	"context"

	"github.com/bodgit/sevenzip"
)

func scanSevenZip(ctx context.Context, data []byte, match func(string) bool) (string, []byte, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		if f.FileInfo().IsDir() || !match(f.Name) {
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
		return f.Name, body, nil
	}
	return "", nil, nil
}
