package archive

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/nwaples/rardecode/v2"
)

func scanRar(ctx context.Context, data []byte, match func(string) bool) (string, []byte, error) {
	rr, err := rardecode.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return "", nil, nil
		}
		if err != nil {
			return "", nil, err
		}
		if hdr.IsDir || !match(hdr.Name) {
			continue
		}
		body, err := readLimited(rr)
		if err != nil {
			return "", nil, err
		}
		return hdr.Name, body, nil
	}
}
