package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	zx80HeaderSize   = 40
	zx80RAMBase      = 0x4000
	zx80EndOfLine    = 0x76
	zx80EndOfProgram = 0x80
	zx80REM          = 254
)

var errZX80TooShort = errors.New("Input byte array is too short to be a valid ZX80 file.")

var zx80Tokens = map[byte]string{
	213: " THEN ", 214: " TO ", 219: "NOT ", 224: " AND ", 225: " OR ",
	226: "**", 230: " LIST ", 231: " RETURN ", 232: " CLS ", 233: " DIM ",
	234: " SAVE ", 235: " FOR ", 236: " GO TO ", 237: " POKE ",
	238: " INPUT ", 239: " RANDOMISE ", 240: " LET ", 243: " NEXT ",
	244: " PRINT ", 246: " NEW ", 247: " RUN ", 248: " STOP ",
	249: " CONTINUE ", 250: " IF ", 251: " GO SUB ", 252: " LOAD ",
	253: " CLEAR ", 254: " REM ",
}

// ZXpand interface commands.
var zxpandTokens = map[byte]string{
	241: " CONFIG ", 245: " DELETE ", 255: " CAT ",
}

var zx80Chars = func() map[byte]rune {
	m := map[byte]rune{
		0: ' ', 1: '"', 12: '£', 13: '$', 14: ':', 15: '?',
		218: '(', 217: ')', 220: '-', 221: '+', 222: '*', 223: '/',
		227: '=', 228: '>', 229: '<', 215: ';', 216: ',', 27: '.',
	}
	for i := 0; i < 10; i++ {
		m[byte(28+i)] = rune('0' + i)
	}
	for i := 0; i < 26; i++ {
		m[byte(38+i)] = rune('A' + i)
	}
	return m
}()

var zx80Graphics = map[byte]string{
	0: "  ", 2: "▌", 3: "▄", 4: "▘", 5: "▝", 6: "▖", 7: "▗",
	8: "▞", 9: "▒", 10: ",,", 11: "~~", 128: "::", 130: " :",
	131: "''", 132: ".:", 133: ":.", 134: "':", 135: ":'",
	136: "'.", 137: "@@", 138: ";;", 139: "!!",
}

// listZX80 lists the BASIC program of a ZX80 memory image. Lines run from the
// end of the system area to the end pointer stored at offset 8.
func listZX80(data []byte, zxpand bool) (string, error) {
	if len(data) < zx80HeaderSize {
		return "", errZX80TooShort
	}
	endPtr := int(binary.LittleEndian.Uint16(data[8:]))
	if endPtr < zx80RAMBase {
		return "", fmt.Errorf("program end pointer %04XH lies below RAM", endPtr)
	}
	end := endPtr - zx80RAMBase

	var out strings.Builder
	pos := zx80HeaderSize
	for pos < end && pos+2 < len(data) {
		if data[pos] == zx80EndOfProgram {
			break
		}
		lineno := binary.BigEndian.Uint16(data[pos:])
		pos += 2

		start := pos
		for pos < len(data) && data[pos] != zx80EndOfLine {
			pos++
		}
		body := data[start:pos]
		if pos < len(data) {
			pos++
		}
		fmt.Fprintf(&out, "%d %s\n", lineno, zx80Line(body, zxpand))
	}
	return out.String(), nil
}

func zx80Token(b byte, zxpand bool) (string, bool) {
	if s, ok := zx80Tokens[b]; ok {
		return s, true
	}
	if zxpand {
		s, ok := zxpandTokens[b]
		return s, ok
	}
	return "", false
}

// takesLineNumber reports whether the token is GO TO, GO SUB, RUN or LIST.
func takesLineNumber(b byte) bool {
	return b == 236 || b == 251 || b == 247 || b == 230
}

func zx80Line(body []byte, zxpand bool) string {
	var sb strings.Builder
	inREM := false
	for i := 0; i < len(body); i++ {
		b := body[i]
		if inREM {
			sb.WriteString(zx80Char(b))
			continue
		}
		tok, ok := zx80Token(b, zxpand)
		if !ok {
			sb.WriteString(zx80Char(b))
			continue
		}
		sb.WriteString(tok)
		if b == zx80REM {
			inREM = true
			continue
		}
		if takesLineNumber(b) {
			for i+1 < len(body) {
				c, ok := zx80Chars[body[i+1]]
				if !ok || c < '0' || c > '9' {
					break
				}
				sb.WriteRune(c)
				i++
			}
		}
	}
	return sb.String()
}

// zx80Char renders one character code. Inverse characters are prefixed with '%'.
func zx80Char(b byte) string {
	if b&0x80 != 0 {
		if c, ok := zx80Chars[b&0x7F]; ok {
			return "%" + string(c)
		}
	}
	if s, ok := zx80Graphics[b]; ok {
		return s
	}
	if c, ok := zx80Chars[b]; ok {
		return string(c)
	}
	return "?"
}
