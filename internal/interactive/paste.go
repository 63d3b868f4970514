package interactive

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jordangarrison/grove/internal/clipboard"
)

// isPasteEvent mirrors the original's heuristic for "this clipboard read
// is worth bracketing": multi-line or longer than a typical single
// keystroke run.
func isPasteEvent(text string) bool {
	return strings.Contains(text, "\n") || utf8.RuneCountInString(text) > 10
}

// encodeBracketedPaste wraps text in ESC[200~ ... ESC[201~ when bracketed
// paste is enabled and the payload looks like a real paste (spec §4.5
// Copy/paste).
func encodeBracketedPaste(text string, bracketedPasteEnabled bool) string {
	if bracketedPasteEnabled && isPasteEvent(text) {
		return "\x1b[200~" + text + "\x1b[201~"
	}
	return text
}

// Paste reads the system clipboard and sends it to the active session,
// wrapping in bracketed-paste markers when the pane has advertised
// support (observed via ESC[?2004h/l in prior captures). The caller is
// responsible for snapping the preview to bottom first when scrolled up.
func (c *Controller) Paste(ctx context.Context) error {
	if c.state == nil {
		return nil
	}
	text, err := clipboard.Paste()
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	payload := encodeBracketedPaste(text, c.state.BracketedPasteEnabled)
	return c.adapter.SendLiteral(ctx, c.state.SessionName, payload)
}

// NoteBracketedPasteMode updates whether the pane currently has bracketed
// paste mode enabled, based on scanning raw capture output for
// ESC[?2004h (enabled) / ESC[?2004l (disabled).
func (c *Controller) NoteBracketedPasteMode(enabled bool) {
	if c.state == nil {
		return
	}
	c.state.BracketedPasteEnabled = enabled
}
