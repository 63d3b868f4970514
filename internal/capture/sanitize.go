// Package capture implements Grove's Capture Processor: dual-lane ANSI
// sanitisation (render stream vs. cleaned stream), hash-based change
// detection, mouse-fragment stripping, and output-pattern status probing.
package capture

import (
	"strings"
)

// StripNonSGRControl removes all C0/C1 control bytes and escape sequences
// except SGR (colour/attribute) codes, producing the render stream (spec
// §4.2). Grounded on original_source's strip_non_sgr_control_sequences.
func StripNonSGRControl(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == 0x1b: // ESC
			consumed, isSGR := consumeEscapeSequence(runes, i)
			if isSGR {
				b.WriteString(string(runes[i : i+consumed]))
			}
			i += consumed
		case r == '\n', r == '\t':
			b.WriteRune(r)
			i++
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f):
			i++ // drop other C0 and C1 control characters
		default:
			b.WriteRune(r)
			i++
		}
	}
	return b.String()
}

// StripSGR additionally strips SGR sequences from an already-control-
// stripped render stream, producing plain text for diffing and pattern
// matching. No ESC byte survives in the result.
func StripSGR(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == 0x1b {
			consumed, _ := consumeEscapeSequence(runes, i)
			i += consumed
			continue
		}
		b.WriteRune(r)
		i++
	}
	return b.String()
}

// consumeEscapeSequence returns how many runes starting at i make up one
// escape sequence (CSI, OSC, or a lone two-byte sequence), and whether that
// sequence is an SGR (`ESC[...m`) sequence that render mode should preserve.
func consumeEscapeSequence(runes []rune, i int) (consumed int, isSGR bool) {
	if i >= len(runes) || runes[i] != 0x1b {
		return 1, false
	}
	if i+1 >= len(runes) {
		return 1, false
	}
	switch runes[i+1] {
	case '[':
		return consumeCSI(runes, i)
	case ']':
		return consumeOSC(runes, i)
	case 'P', '_', '^', 'X':
		return consumeST(runes, i)
	default:
		return 2, false
	}
}

// consumeCSI consumes an ESC [ ... final-byte sequence. Final bytes are in
// 0x40-0x7e; an SGR sequence's final byte is 'm'.
func consumeCSI(runes []rune, start int) (consumed int, isSGR bool) {
	i := start + 2
	for i < len(runes) {
		r := runes[i]
		if r >= 0x40 && r <= 0x7e {
			return i - start + 1, r == 'm'
		}
		i++
	}
	return len(runes) - start, false
}

// consumeOSC consumes an ESC ] ... (BEL | ESC \\) sequence.
func consumeOSC(runes []rune, start int) (consumed int, isSGR bool) {
	i := start + 2
	for i < len(runes) {
		if runes[i] == 0x07 {
			return i - start + 1, false
		}
		if runes[i] == 0x1b && i+1 < len(runes) && runes[i+1] == '\\' {
			return i - start + 2, false
		}
		i++
	}
	return len(runes) - start, false
}

// consumeST consumes a DCS/APC/PM/SOS sequence terminated by ST (ESC \\).
func consumeST(runes []rune, start int) (consumed int, isSGR bool) {
	i := start + 2
	for i < len(runes) {
		if runes[i] == 0x1b && i+1 < len(runes) && runes[i+1] == '\\' {
			return i - start + 2, false
		}
		i++
	}
	return len(runes) - start, false
}

// mouseModes are the terminal mouse-reporting modes Grove's own sessions
// may toggle; their enable/disable sequences leak into captured output and
// must not affect change detection (spec §4.2 Mouse-fragment stripping).
var mouseModes = []string{"1000", "1002", "1003", "1005", "1006", "1015", "2004"}

// StripMouseFragments removes SGR-mode mouse reports, mouse-mode
// enable/disable toggles, and fragments missing their leading ESC byte.
// Grounded on original_source's strip_mouse_fragments /
// strip_partial_mouse_sequences.
func StripMouseFragments(input string) string {
	cleaned := input
	for _, mode := range mouseModes {
		cleaned = strings.ReplaceAll(cleaned, "\x1b[?"+mode+"h", "")
		cleaned = strings.ReplaceAll(cleaned, "\x1b[?"+mode+"l", "")
		cleaned = strings.ReplaceAll(cleaned, "[?"+mode+"h", "")
		cleaned = strings.ReplaceAll(cleaned, "[?"+mode+"l", "")
	}
	return stripPartialMouseSequences(cleaned)
}

// stripPartialMouseSequences removes complete and leading-ESC-missing SGR
// mouse report fragments: `[<btn;col;row` followed by `M` or `m`, with or
// without the ESC byte that normally precedes `[`.
func stripPartialMouseSequences(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	i := 0
	for i < len(input) {
		start := i
		hasEsc := false
		if input[i] == 0x1b && i+1 < len(input) && input[i+1] == '[' {
			hasEsc = true
			i++
		}
		if i < len(input) && input[i] == '[' && i+1 < len(input) && input[i+1] == '<' {
			if end, ok := parseSGRMouseTail(input, i+2); ok {
				i = end
				continue
			}
		}
		if hasEsc {
			i = start // not a mouse fragment; re-emit the ESC we peeked past
		}
		b.WriteByte(input[i])
		i++
	}
	return b.String()
}

// parseSGRMouseTail parses `btn;col;row` + (`M`|`m`) starting at i (just
// after "[<"). Returns the index just past the terminator on success.
func parseSGRMouseTail(input string, i int) (int, bool) {
	i, ok := consumeASCIIDigits(input, i)
	if !ok || i >= len(input) || input[i] != ';' {
		return 0, false
	}
	i++
	i, ok = consumeASCIIDigits(input, i)
	if !ok || i >= len(input) || input[i] != ';' {
		return 0, false
	}
	i++
	i, ok = consumeASCIIDigits(input, i)
	if !ok || i >= len(input) {
		return 0, false
	}
	if input[i] != 'M' && input[i] != 'm' {
		return 0, false
	}
	return i + 1, true
}

func consumeASCIIDigits(input string, i int) (int, bool) {
	start := i
	for i < len(input) && input[i] >= '0' && input[i] <= '9' {
		i++
	}
	return i, i > start
}

// SplitLines splits a cleaned/render stream into lines, trimming all
// trailing newlines first (spec §4.2: "trimmed of the trailing newline
// before splitting into lines"); other trailing whitespace is kept.
func SplitLines(output string) []string {
	trimmed := strings.TrimRight(output, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

// TrimToCapacity bounds a line slice to at most capacity entries, keeping
// the most recent (tail) lines.
func TrimToCapacity(lines []string, capacity int) []string {
	if len(lines) <= capacity {
		return lines
	}
	return lines[len(lines)-capacity:]
}
