package interactive

import (
	"strings"

	"github.com/jordangarrison/grove/internal/domain"
)

// RenderCursorOverlay inserts a cursor marker into an SGR-bearing render
// line at the given plain-text column, skipping over escape sequences so
// the column count matches what's visually on screen (spec §4.5 cursor
// overlay rendering), grounded on
// original_source/src/application/interactive.rs's
// render_cursor_overlay_ansi.
func RenderCursorOverlay(renderLine, plainLine string, cursorCol int, cursorVisible bool, glyph string) string {
	if !cursorVisible {
		return renderLine
	}

	plainLen := len([]rune(plainLine))
	if cursorCol >= plainLen {
		padding := strings.Repeat(" ", max(0, cursorCol-plainLen))
		return renderLine + padding + glyph
	}

	runes := []rune(renderLine)
	var b strings.Builder
	visibleIndex := 0
	inserted := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\x1b' {
			b.WriteRune(r)
			if i+1 < len(runes) {
				i++
				next := runes[i]
				b.WriteRune(next)
				switch next {
				case '[':
					for i+1 < len(runes) {
						i++
						b.WriteRune(runes[i])
						if runes[i] >= 0x40 && runes[i] <= 0x7e {
							break
						}
					}
				case ']':
					for i+1 < len(runes) {
						i++
						b.WriteRune(runes[i])
						if runes[i] == 0x07 {
							break
						}
						if runes[i] == '\x1b' && i+1 < len(runes) && runes[i+1] == '\\' {
							i++
							b.WriteRune(runes[i])
							break
						}
					}
				case 'P', 'X', '^', '_':
					for i+1 < len(runes) {
						i++
						b.WriteRune(runes[i])
						if runes[i] == '\x1b' && i+1 < len(runes) && runes[i+1] == '\\' {
							i++
							b.WriteRune(runes[i])
							break
						}
					}
				}
			}
			continue
		}

		if !inserted && visibleIndex == cursorCol {
			b.WriteString(glyph)
			inserted = true
		}
		b.WriteRune(r)
		visibleIndex++
	}

	if !inserted {
		b.WriteString(glyph)
	}
	return b.String()
}

// ClaudeCursorGlyph is the reverse-video block cursor Grove overlays on
// agents that don't already render their own cursor in-stream. Codex does
// (spec §9 Open Questions), so AgentKind.AllowsCursorOverlay is false for
// it and callers must skip the overlay entirely rather than substitute a
// different glyph — drawing any glyph there would double the cursor.
const ClaudeCursorGlyph = "\x1b[7m \x1b[0m"

// GlyphFor returns the overlay glyph for an agent kind, or "" when the
// kind must not receive an overlay at all.
func GlyphFor(kind domain.AgentKind) string {
	if !kind.AllowsCursorOverlay() {
		return ""
	}
	return ClaudeCursorGlyph
}
