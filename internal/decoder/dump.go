package decoder

import (
	"fmt"
	"strings"
)

const dataBytesPerLine = 16

// hexDump renders data as offset, hex bytes and an ASCII column, dataBytesPerLine
// bytes per line.
func hexDump(data []byte, sharp bool) string {
	var sb strings.Builder
	var hex, ascii strings.Builder

	for offset := 0; offset < len(data); offset += dataBytesPerLine {
		line := data[offset:min(offset+dataBytesPerLine, len(data))]
		hex.Reset()
		ascii.Reset()
		for i, b := range line {
			if i > 0 {
				hex.WriteByte(' ')
			}
			fmt.Fprintf(&hex, "%02X", b)
			ascii.WriteRune(columnRune(b, sharp))
		}
		fmt.Fprintf(&sb, "%04X  %-47s  %s\n", offset, hex.String(), ascii.String())
	}
	return sb.String()
}
