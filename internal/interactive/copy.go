package interactive

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jordangarrison/grove/internal/capture"
	"github.com/jordangarrison/grove/internal/clipboard"
	"github.com/jordangarrison/grove/internal/domain"
)

const tabWidth = 8

// expandTabs replaces tabs with spaces up to the next tab stop, so visual
// column math (selection ranges) lines up with what's on screen.
func expandTabs(line string) string {
	var b strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			spaces := tabWidth - (col % tabWidth)
			b.WriteString(strings.Repeat(" ", spaces))
			col += spaces
			continue
		}
		b.WriteRune(r)
		col += runewidth.RuneWidth(r)
	}
	return b.String()
}

// sliceByVisualColumn extracts the runes of line falling within
// [startCol, endCol) by visual column. A wide character is kept only when
// its first column lies in the range: a start boundary that lands mid-way
// through one leaves it out, an end boundary that does keeps it whole.
func sliceByVisualColumn(line string, startCol, endCol int) string {
	expanded := expandTabs(line)
	var b strings.Builder
	col := 0
	for _, r := range expanded {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			w = 1
		}
		if col >= startCol && col < endCol {
			b.WriteRune(r)
		}
		col += w
		if col >= endCol {
			break
		}
	}
	return b.String()
}

// CopySelection implements Alt+C (spec §4.5 Copy/paste): extract the
// selected lines from the cleaned output buffer by visual column range if
// a selection is present, otherwise copy the currently visible lines.
// Returns the flash message text on success.
func (c *Controller) CopySelection(cleanedLines []string, visibleStart, visibleEnd int, supportsOSC52 bool) (string, error) {
	var lines []string

	if c.state != nil && c.state.SelectionActive {
		startRow, startCol, endRow, endCol := normalizeSelection(c.state)
		for row := startRow; row <= endRow && row < len(cleanedLines); row++ {
			if row < 0 {
				continue
			}
			line := cleanedLines[row]
			colStart, colEnd := 0, runewidth.StringWidth(expandTabs(line))
			if row == startRow {
				colStart = startCol
			}
			if row == endRow {
				colEnd = endCol
			}
			lines = append(lines, capture.StripSGR(sliceByVisualColumn(line, colStart, colEnd)))
		}
		c.state.SelectionActive = false
	} else {
		if visibleStart < 0 {
			visibleStart = 0
		}
		if visibleEnd > len(cleanedLines) {
			visibleEnd = len(cleanedLines)
		}
		for i := visibleStart; i < visibleEnd; i++ {
			lines = append(lines, capture.StripSGR(cleanedLines[i]))
		}
	}

	text := strings.Join(lines, "\n")
	if _, err := clipboard.Copy(text, supportsOSC52); err != nil {
		return "", err
	}
	return fmt.Sprintf("Copied %d lines", len(lines)), nil
}

// normalizeSelection orders a selection's anchor/extent into a top-left,
// bottom-right row/col pair regardless of drag direction.
func normalizeSelection(s *domain.InteractiveState) (startRow, startCol, endRow, endCol int) {
	if s.SelAnchorRow < s.SelExtentRow || (s.SelAnchorRow == s.SelExtentRow && s.SelAnchorCol <= s.SelExtentCol) {
		return s.SelAnchorRow, s.SelAnchorCol, s.SelExtentRow, s.SelExtentCol
	}
	return s.SelExtentRow, s.SelExtentCol, s.SelAnchorRow, s.SelAnchorCol
}
