package decoder

// sharpASCII maps the Sharp display codes used for lower-case letters.
var sharpASCII = map[byte]rune{
	146: 'e', 150: 't', 151: 'g', 152: 'h', 154: 'b', 155: 'x', 156: 'd',
	157: 'r', 158: 'p', 159: 'c', 160: 'q', 161: 'a', 162: 'z', 163: 'w',
	164: 's', 165: 'u', 166: 'i', 169: 'k', 170: 'f', 171: 'v', 175: 'j',
	176: 'n', 179: 'm', 183: 'o', 184: 'l', 189: 'y',
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

// columnRune renders b for an ASCII side column. Unprintable bytes become '.'.
func columnRune(b byte, sharp bool) rune {
	if sharp {
		if r, ok := sharpASCII[b]; ok {
			return r
		}
	}
	if isPrintable(b) {
		return rune(b)
	}
	return '.'
}
