package decoder

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// MZF header fields used for disassembly.
const (
	mzfLoadAddress = 0x14
	mzfExecAddress = 0x16
)

const unknownInstruction = "???"

var (
	z80Regs8     = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	z80Regs16    = [4]string{"BC", "DE", "HL", "SP"}
	z80Regs16AF  = [4]string{"BC", "DE", "HL", "AF"}
	z80Conds     = [8]string{"NZ", "Z", "NC", "C", "PO", "PE", "P", "M"}
	z80ALU       = [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	z80Rotations = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SLL", "SRL"}
	z80Accum     = [8]string{"RLCA", "RRCA", "RLA", "RRA", "DAA", "CPL", "SCF", "CCF"}
)

// disassembleMZF disassembles the body of an MZF image at its load address and
// marks the line at the exec address with '>'.
func disassembleMZF(data []byte, sharp bool) (string, error) {
	if len(data) < mzfExecAddress+2 {
		return "", fmt.Errorf("MZF header: %w", ErrTruncated)
	}
	load := binary.LittleEndian.Uint16(data[mzfLoadAddress:])
	exec := binary.LittleEndian.Uint16(data[mzfExecAddress:])
	var body []byte
	if len(data) > mzfHeaderSize {
		body = data[mzfHeaderSize:]
	}
	return disassembleZ80(body, load, exec, sharp), nil
}

// disassembleZ80 renders one line per instruction: mnemonic, address, exec
// marker, raw bytes and their characters.
func disassembleZ80(body []byte, start, exec uint16, sharp bool) string {
	lines := make([]string, 0, len(body)/2)
	pc := start
	for pos := 0; pos < len(body); {
		text, n := decodeZ80(body[pos:], pc)
		raw := body[pos:min(pos+n, len(body))]

		hex := make([]string, len(raw))
		var ascii strings.Builder
		for i, b := range raw {
			hex[i] = fmt.Sprintf("%02X", b)
			ascii.WriteRune(columnRune(b, sharp))
		}
		marker := " "
		if pc == exec {
			marker = ">"
		}
		lines = append(lines, fmt.Sprintf("%-22s ;%04X %-15s %s",
			text, pc, marker+" "+strings.Join(hex, " "), ascii.String()))

		pos += n
		pc += uint16(n)
	}
	return strings.Join(lines, "\n")
}

// decodeZ80 decodes the instruction at the start of d, located at pc. It returns
// the mnemonic and the number of bytes it occupies. Truncated operands decode as
// unknownInstruction with length 1.
func decodeZ80(d []byte, pc uint16) (string, int) {
	op := d[0]
	x, y, z := op>>6, (op>>3)&7, op&7
	p, q := y>>1, y&1

	imm8 := func(format string) (string, int) {
		if len(d) < 2 {
			return unknownInstruction, 1
		}
		return fmt.Sprintf(format, d[1]), 2
	}
	imm16 := func(format string) (string, int) {
		if len(d) < 3 {
			return unknownInstruction, 1
		}
		return fmt.Sprintf(format, binary.LittleEndian.Uint16(d[1:])), 3
	}
	relative := func(format string) (string, int) {
		if len(d) < 2 {
			return unknownInstruction, 1
		}
		return fmt.Sprintf(format, pc+2+uint16(int8(d[1]))), 2
	}

	switch x {
	case 0:
		switch z {
		case 0:
			switch y {
			case 0:
				return "NOP", 1
			case 1:
				return "EX AF,AF'", 1
			case 2:
				return relative("DJNZ %04XH")
			case 3:
				return relative("JR %04XH")
			default:
				return relative("JR " + z80Conds[y-4] + ",%04XH")
			}
		case 1:
			if q == 0 {
				return imm16("LD " + z80Regs16[p] + ",%04XH")
			}
			return "ADD HL," + z80Regs16[p], 1
		case 2:
			switch y {
			case 0:
				return "LD (BC),A", 1
			case 1:
				return "LD A,(BC)", 1
			case 2:
				return "LD (DE),A", 1
			case 3:
				return "LD A,(DE)", 1
			case 4:
				return imm16("LD (%04XH),HL")
			case 5:
				return imm16("LD HL,(%04XH)")
			case 6:
				return imm16("LD (%04XH),A")
			default:
				return imm16("LD A,(%04XH)")
			}
		case 3:
			if q == 0 {
				return "INC " + z80Regs16[p], 1
			}
			return "DEC " + z80Regs16[p], 1
		case 4:
			return "INC " + z80Regs8[y], 1
		case 5:
			return "DEC " + z80Regs8[y], 1
		case 6:
			return imm8("LD " + z80Regs8[y] + ",%02XH")
		default:
			return z80Accum[y], 1
		}

	case 1:
		if op == 0x76 {
			return "HALT", 1
		}
		return "LD " + z80Regs8[y] + "," + z80Regs8[z], 1

	case 2:
		return z80ALU[y] + z80Regs8[z], 1
	}

	switch z {
	case 0:
		return "RET " + z80Conds[y], 1
	case 1:
		if q == 0 {
			return "POP " + z80Regs16AF[p], 1
		}
		return [4]string{"RET", "EXX", "JP (HL)", "LD SP,HL"}[p], 1
	case 2:
		return imm16("JP " + z80Conds[y] + ",%04XH")
	case 3:
		switch y {
		case 0:
			return imm16("JP %04XH")
		case 1:
			return decodeZ80CB(d)
		case 2:
			return imm8("OUT (%02XH),A")
		case 3:
			return imm8("IN A,(%02XH)")
		default:
			return [4]string{"EX (SP),HL", "EX DE,HL", "DI", "EI"}[y-4], 1
		}
	case 4:
		return imm16("CALL " + z80Conds[y] + ",%04XH")
	case 5:
		if q == 0 {
			return "PUSH " + z80Regs16AF[p], 1
		}
		switch p {
		case 0:
			return imm16("CALL %04XH")
		case 1:
			return decodeZ80Index(d, "IX")
		case 2:
			return decodeZ80ED(d)
		default:
			return decodeZ80Index(d, "IY")
		}
	case 6:
		return imm8(z80ALU[y] + "%02XH")
	default:
		return fmt.Sprintf("RST %02XH", y*8), 1
	}
}

func decodeZ80CB(d []byte) (string, int) {
	if len(d) < 2 {
		return unknownInstruction, 1
	}
	return bitOperation(d[1], z80Regs8[d[1]&7]), 2
}

// bitOperation formats a CB-prefixed operation on operand.
func bitOperation(op byte, operand string) string {
	y := (op >> 3) & 7
	switch op >> 6 {
	case 0:
		return z80Rotations[y] + " " + operand
	case 1:
		return fmt.Sprintf("BIT %d,%s", y, operand)
	case 2:
		return fmt.Sprintf("RES %d,%s", y, operand)
	default:
		return fmt.Sprintf("SET %d,%s", y, operand)
	}
}

var z80EDFixed = map[byte]string{
	0x44: "NEG", 0x45: "RETN", 0x4D: "RETI",
	0x46: "IM 0", 0x56: "IM 1", 0x5E: "IM 2",
	0x47: "LD I,A", 0x57: "LD A,I", 0x4F: "LD R,A", 0x5F: "LD A,R",
	0x67: "RRD", 0x6F: "RLD",
	0xA0: "LDI", 0xA1: "CPI", 0xA2: "INI", 0xA3: "OUTI",
	0xA8: "LDD", 0xA9: "CPD", 0xAA: "IND", 0xAB: "OUTD",
	0xB0: "LDIR", 0xB1: "CPIR", 0xB2: "INIR", 0xB3: "OTIR",
	0xB8: "LDDR", 0xB9: "CPDR", 0xBA: "INDR", 0xBB: "OTDR",
}

func decodeZ80ED(d []byte) (string, int) {
	if len(d) < 2 {
		return unknownInstruction, 1
	}
	op := d[1]
	if s, ok := z80EDFixed[op]; ok {
		return s, 2
	}
	if op>>6 == 1 {
		y, z, p, q := (op>>3)&7, op&7, (op>>4)&3, (op>>3)&1
		ioReg := z80Regs8[y]
		if y == 6 {
			ioReg = "F"
		}
		switch z {
		case 0:
			return "IN " + ioReg + ",(C)", 2
		case 1:
			return "OUT (C)," + ioReg, 2
		case 2:
			if q == 0 {
				return "SBC HL," + z80Regs16[p], 2
			}
			return "ADC HL," + z80Regs16[p], 2
		case 3:
			if len(d) < 4 {
				return unknownInstruction, 2
			}
			nn := binary.LittleEndian.Uint16(d[2:])
			if q == 0 {
				return fmt.Sprintf("LD (%04XH),%s", nn, z80Regs16[p]), 4
			}
			return fmt.Sprintf("LD %s,(%04XH)", z80Regs16[p], nn), 4
		}
	}
	return fmt.Sprintf("DB $ED,$%02X", op), 2
}

// indexed formats an (IX+d) operand with a signed hex displacement.
func indexed(reg string, disp byte) string {
	v := int(int8(disp))
	if v < 0 {
		return fmt.Sprintf("(%s-%02XH)", reg, -v)
	}
	return fmt.Sprintf("(%s+%02XH)", reg, v)
}

// decodeZ80Index decodes DD and FD prefixed instructions, reg being IX or IY.
func decodeZ80Index(d []byte, reg string) (string, int) {
	if len(d) < 2 {
		return unknownInstruction, 1
	}
	op := d[1]
	x, y, z := op>>6, (op>>3)&7, op&7

	withDisp := func(format func(operand string) string) (string, int) {
		if len(d) < 3 {
			return unknownInstruction, 1
		}
		return format(indexed(reg, d[2])), 3
	}
	withWord := func(format string) (string, int) {
		if len(d) < 4 {
			return unknownInstruction, 1
		}
		return fmt.Sprintf(format, binary.LittleEndian.Uint16(d[2:])), 4
	}

	switch op {
	case 0xCB:
		if len(d) < 4 {
			return unknownInstruction, 1
		}
		sub := d[3]
		operand := indexed(reg, d[2])
		text := bitOperation(sub, operand)
		if sub>>6 != 1 && sub&7 != 6 {
			text += "," + z80Regs8[sub&7]
		}
		return text, 4
	case 0x21:
		return withWord("LD " + reg + ",%04XH")
	case 0x22:
		return withWord("LD (%04XH)," + reg)
	case 0x2A:
		return withWord("LD " + reg + ",(%04XH)")
	case 0x23:
		return "INC " + reg, 2
	case 0x2B:
		return "DEC " + reg, 2
	case 0x09, 0x19, 0x29, 0x39:
		src := z80Regs16[y>>1]
		if src == "HL" {
			src = reg
		}
		return "ADD " + reg + "," + src, 2
	case 0xE1:
		return "POP " + reg, 2
	case 0xE3:
		return "EX (SP)," + reg, 2
	case 0xE5:
		return "PUSH " + reg, 2
	case 0xE9:
		return "JP (" + reg + ")", 2
	case 0xF9:
		return "LD SP," + reg, 2
	case 0x34:
		return withDisp(func(o string) string { return "INC " + o })
	case 0x35:
		return withDisp(func(o string) string { return "DEC " + o })
	case 0x36:
		if len(d) < 4 {
			return unknownInstruction, 1
		}
		return fmt.Sprintf("LD %s,%02XH", indexed(reg, d[2]), d[3]), 4
	}

	switch {
	case x == 1 && z == 6 && y != 6:
		return withDisp(func(o string) string { return "LD " + z80Regs8[y] + "," + o })
	case x == 1 && y == 6 && z != 6:
		return withDisp(func(o string) string { return "LD " + o + "," + z80Regs8[z] })
	case x == 2 && z == 6:
		return withDisp(func(o string) string { return z80ALU[y] + o })
	}
	return fmt.Sprintf("DB $%02X,$%02X", d[0], op), 2
}
