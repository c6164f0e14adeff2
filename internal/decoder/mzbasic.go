package decoder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type basicVersion int

const (
	basicSA5510 basicVersion = iota
	basicSP5025
	basic1Z013B
)

// SA-5510 statement tokens, reached through the 0x80 prefix.
var tokensSA5510 = []string{
	"REM", "DATA", "", "", "READ", "LIST", "RUN", "NEW", "PRINT", "LET", "FOR",
	"IF", "THEN", "GOTO", "GOSUB", "RETURN", "NEXT", "STOP", "END", "", "ON",
	"LOAD", "SAVE", "VERIFY", "POKE", "DIM", "DEF FN", "INPUT", "RESTORE", "CLR",
	"MUSIC", "TEMPO", "USR(", "WOPEN", "ROPEN", "CLOSE", "MON", "LIMIT", "CONT",
	"GET", "INP#", "OUT#", "CURSOR", "SET", "RESET", "", "", "", "", "", "", "AUTO",
	"", "", "COPY/P", "PAGE/P",
}

// SA-5510 operator and function tokens.
var tokensSA5510Ops = []string{
	"", "", "", "><", "<>", "=<", "<=", "=>", ">=", "", ">", "<", "", "", "", "",
	"", "", "", "", "", "", "", "", "", "", "", "", "", "",
	"TO", "STEP", "LEFT$(", "RIGHT$(", "MID$(", "LEN(", "CHR$(", "STR$(", "ASC(", "VAL(", "PEEK(", "TAB(", "SPACE$(",
	"SIZE", "", "", "", "STRING$(", "", "CHARACTER$(", "CRS", "CRS", "", "", "", "", "", "", "", "", "", "", "", "",
	"RND(", "SIN(", "COS(", "TAN(", "ATN(", "EXP(", "INT(", "LOG(", "LN(", "ABS(", "SGN(", "SQR(",
}

var tokensSP5025 = []string{
	"REM", "DATA", "LIST", "RUN", "NEW", "PRINT", "LET", "FOR", "IF", "GOTO", "READ",
	"GOSUB", "RETURN", "NEXT", "STOP", "END", "ON", "LOAD", "SAVE", "VERIFY", "POKE", "DIM",
	"DEF FN", "INPUT", "RESTORE", "CLR", "MUSIC", "TEMPO", "USR(", "WOPEN", "ROPEN", "CLOSE", "BYE",
	"LIMIT", "CONT", "SET", "RESET", "GET", "INP#", "OUT#", "", "", "", "",
	"", "THEN", "TO", "STEP", "><", "<>", "=<", "<=", "=>", ">=", "=", ">", "<",
	"AND", "OR", "NOT", "+", "-", "*", "/", "LEFT$(", "RIGHT$(", "MID$(", "LEN(", "CHR$(",
	"STR$(", "ASC(", "VAL(", "PEEK(", "TAB(", "SP(", "SIZE", "", "", "", "^", "RND(",
	"SIN(", "COS(", "TAN(", "ATN(", "EXP(", "INT(", "LOG(", "LN(", "ABS(", "SGN(", "SQR(",
}

var tokens1Z013B = []string{
	"GOTO", "GOSUB", "", "RUN", "RETURN", "RESTORE", "RESUME", "LIST", "", "DELETE", "RENUMBER", "AUTO", "", "FOR", "NEXT", "PRINT",
	"", "INPUT", "", "IF", "DATA", "READ", "DIM", "REM", "END", "STOP", "CONT", "CLS", "", "ON", "LET", "NEW",
	"POKE", "OFF", "MODE", "SKIP", "PLOT", "LINE", "RLINE", "MOVE", "RMOVE", "TRON", "TROFF", "INP#", "", "GET", "PCOLOR", "PHOME",
	"HSET", "GPRINT", "KEY", "AXIS", "LOAD", "SAVE", "MERGE", "", "CONSOLE", "", "OUT", "CIRCLE", "TEST", "PAGE", "", "",
	"ERASE", "ERROR", "", "USR", "BYE", "", "", "DEF", "", "", "", "", "", "", "WOPEN", "CLOSE",
	"ROPEN", "", "", "", "", "", "", "", "", "KILL", "", "", "", "", "", "",
	"TO", "STEP", "THEN", "USING", "", "", "TAB", "SPC", "", "", "", "OR", "AND", "", "><", "<>",
	"=<", "<=", "=>", ">=", "=", ">", "<", "+", "-", "", "", "/", "*", "^", "", "",
}

// 1Z-013B statements behind the 0xFE prefix.
var tokens1Z013BExt1 = []string{
	"", "SET", "RESET", "COLOR", "", "", "", "", "", "", "", "", "", "", "", "",
	"", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "",
	"", "", "MUSIC", "TEMPO", "CURSOR", "VERIFY", "CLR", "LIMIT", "", "", "", "", "", "", "BOOT", "",
}

// 1Z-013B functions behind the 0xFF prefix.
var tokens1Z013BExt2 = []string{
	"INT", "ABS", "SIN", "COS", "TAN", "LN", "EXP", "SQR", "RND", "PEEK", "ATN", "SGN", "LOG", "PAI", "", "RAD",
	"", "", "", "", "", "EOF", "", "", "", "", "", "", "", "", "JOY", "",
	"", "STR$", "HEX$", "", "", "", "", "", "", "", "", "ASC", "LEN", "VAL", "", "",
	"", "", "", "ERN", "ERL", "SIZE", "", "", "", "", "LEFT$", "RIGHT$", "MID$", "", "", "",
	"", "", "", "", "TI$", "", "", "FN",
}

// Control codes shown inside string literals.
var stringLiteralGlyphs = map[byte]string{
	0x0D: "↵",
	0x10: "⌫",
	0x11: "↓",
	0x12: "↑",
	0x13: "→",
	0x14: "←",
	0x15: "⌂",
	0x16: "🅲",
	0x18: "⎀",
}

const literalPlaceholder = '◇'

// detokenizeMZ lists a tokenized MZ BASIC program stored after the MZF header.
// Each line is a little-endian length (including the four header bytes), a
// little-endian line number and the tokenized text. A zero length ends the program.
func detokenizeMZ(data []byte, version basicVersion) (string, error) {
	r := &byteReader{data: data, off: mzfHeaderSize}
	var out strings.Builder

	for {
		length, err := r.u16()
		if err != nil || length == 0 {
			break
		}
		lineno, err := r.u16()
		if err != nil {
			return "", fmt.Errorf("line header: %w", err)
		}
		line, err := detokenizeLine(r, version, length)
		if err != nil {
			return "", fmt.Errorf("line %d: %w", lineno, err)
		}
		out.WriteString(strconv.Itoa(int(lineno)))
		out.WriteByte(' ')
		out.WriteString(line)
	}
	return out.String(), nil
}

func detokenizeLine(r *byteReader, version basicVersion, length uint16) (string, error) {
	var line strings.Builder
	var quote, literal bool

	for read := uint16(4); read < length; {
		b, err := r.u8()
		if err != nil {
			return "", err
		}
		read++

		if literal {
			switch {
			case b == 0x0D || b == 0x00:
				line.WriteByte('\n')
			case sharpASCII[b] != 0:
				line.WriteRune(sharpASCII[b])
			case isPrintable(b):
				line.WriteByte(b)
			default:
				line.WriteRune(literalPlaceholder)
			}
			continue
		}

		switch {
		case b == 0x00 || b == 0x0D:
			line.WriteByte('\n')
			return line.String(), nil

		case (b == 0x0B || b == 0x0C) && !quote:
			v, err := r.u16()
			if err != nil {
				return "", err
			}
			read += 2
			line.WriteString(strconv.Itoa(int(v)))

		case b == 0x11 && !quote:
			v, err := r.u16()
			if err != nil {
				return "", err
			}
			read += 2
			fmt.Fprintf(&line, "$%X", v)

		case b == 0x15 && !quote:
			v, err := readMZFloat(r)
			if err != nil {
				return "", err
			}
			read += 5
			line.WriteString(strconv.FormatFloat(v, 'f', -1, 64))

		case b >= 0x80 && !quote:
			n, enterLiteral, err := writeToken(&line, r, version, b)
			if err != nil {
				return "", err
			}
			read += n
			literal = enterLiteral

		default:
			switch {
			case b == '"':
				quote = !quote
				line.WriteByte('"')
			case quote && stringLiteralGlyphs[b] != "":
				line.WriteString(stringLiteralGlyphs[b])
			case sharpASCII[b] != 0:
				line.WriteRune(sharpASCII[b])
			case isPrintable(b):
				line.WriteByte(b)
			}
		}
	}
	return line.String(), nil
}

// writeToken expands token byte b. It returns how many extra bytes were consumed
// and whether the rest of the line is literal text (REM and DATA).
func writeToken(line *strings.Builder, r *byteReader, version basicVersion, b byte) (uint16, bool, error) {
	switch version {
	case basicSP5025:
		if tok := int(b - 0x80); tok < len(tokensSP5025) {
			line.WriteString(tokensSP5025[tok])
		}
		return 0, b == 0x80 || b == 0x81, nil

	case basic1Z013B:
		if b != 0xFE && b != 0xFF {
			line.WriteString(tokens1Z013B[b-0x80])
			return 0, b == 0x97 || b == 0x94, nil
		}
		next, err := r.u8()
		if err != nil {
			return 0, false, err
		}
		table := tokens1Z013BExt1
		if b == 0xFF {
			table = tokens1Z013BExt2
		}
		if next >= 0x80 && int(next-0x80) < len(table) {
			line.WriteString(table[next-0x80])
		} else {
			fmt.Fprintf(line, "[0x%02X 0x%02X]", b, next)
		}
		return 1, false, nil

	default:
		if b != 0x80 {
			if tok := int(b - 0x80); tok < len(tokensSA5510Ops) {
				line.WriteString(tokensSA5510Ops[tok])
			} else {
				fmt.Fprintf(line, "[0x%02X]", b)
			}
			return 0, false, nil
		}
		next, err := r.u8()
		if err != nil {
			return 0, false, err
		}
		switch {
		case next == 0x80:
			line.WriteString("REM")
			return 1, true, nil
		case next == 0x81:
			line.WriteString("DATA")
			return 1, true, nil
		case next > 0x81 && int(next-0x80) < len(tokensSA5510):
			line.WriteString(tokensSA5510[next-0x80])
		case next < 0x80:
			fmt.Fprintf(line, "[0x80 0x%02X]", next)
		}
		return 1, false, nil
	}
}

// readMZFloat decodes the five-byte MZ BASIC float: a biased exponent followed by
// four mantissa bytes whose top seven bits each contribute, with an implicit 0.5.
func readMZFloat(r *byteReader) (float64, error) {
	exponent, err := r.u8()
	if err != nil {
		return 0, err
	}
	var mantissa float64
	bit := 1
	for i := 0; i < 4; i++ {
		b, err := r.u8()
		if err != nil {
			return 0, err
		}
		for j := 7; j >= 1; j-- {
			if b&(1<<j) != 0 {
				mantissa += math.Pow(2, -float64(bit))
			}
			bit++
		}
	}
	if exponent == 0 {
		return 0, nil
	}
	mantissa += 0.5
	return math.Ldexp(mantissa, int(exponent)-0x80), nil
}
