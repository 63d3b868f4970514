package interactive

import (
	"context"
	"fmt"
	"time"

	"github.com/jordangarrison/grove/internal/adapter"
	"github.com/jordangarrison/grove/internal/domain"
	"github.com/jordangarrison/grove/internal/logging"
)

var interactiveLog = logging.ForComponent(logging.CompInteractive)

// DoubleEscapeWindow is the deadline within which a second Escape exits
// interactive mode instead of forwarding both presses.
const DoubleEscapeWindow = 150 * time.Millisecond

// Split-mouse-fragment filter windows (spec §4.5's third input-hygiene
// filter), grounded on
// original_source/src/application/interactive.rs's
// SPLIT_MOUSE_FRAGMENT_START_WINDOW_MS/SPLIT_MOUSE_FRAGMENT_MAX_AGE_MS.
const (
	splitMouseFragmentStartWindow = 10 * time.Millisecond
	splitMouseFragmentMaxAge      = 50 * time.Millisecond
)

// Adapter is the subset of the Session Adapter the Controller drives.
type Adapter interface {
	EnsureWindowSizeManual(ctx context.Context, session string) error
	Resize(ctx context.Context, pane string, cols, rows int) error
	QueryCursor(ctx context.Context, pane string) (adapter.CursorInfo, error)
	Capture(ctx context.Context, target string, lines int, mode adapter.CaptureMode) (string, error)
	SendNamedKey(ctx context.Context, session, keyName string) error
	SendLiteral(ctx context.Context, session, text string) error
}

// Controller drives one workspace's Interactive state machine (spec
// §4.5).
type Controller struct {
	adapter     Adapter
	generations *domain.Generations
	now         func() time.Time

	state *domain.InteractiveState

	lastMouseEventAt       time.Time
	mouseFragmentStartedAt time.Time
	mouseFragmentActive    bool
}

// New returns a Controller bound to one adapter and generation table; no
// workspace is entered yet.
func New(a Adapter, generations *domain.Generations) *Controller {
	return &Controller{adapter: a, generations: generations, now: time.Now}
}

// ResizeFailedErr is returned by Enter when the pane's reported dimensions
// never converge after one retry; Enter still succeeds (spec §4.5:
// "emits a resize-failed signal but does not block").
type ResizeFailedErr struct {
	WantCols, WantRows int
	GotCols, GotRows   int
}

func (e *ResizeFailedErr) Error() string {
	return fmt.Sprintf("interactive: pane resize did not converge: want %dx%d got %dx%d",
		e.WantCols, e.WantRows, e.GotCols, e.GotRows)
}

// Enter runs the entering sequence (spec §4.5 Entering): bump generation,
// resize to match the preview area, verify with one retry, immediate
// capture + cursor query, initialize input-hygiene state. The returned
// capture is the immediate post-resize snapshot; resizeErr is non-nil
// (and non-fatal) when dimensions never converged.
func (c *Controller) Enter(ctx context.Context, session, pane string, cols, rows int) (capture string, cursor adapter.CursorInfo, resizeErr error, err error) {
	generation := c.generations.Bump(session)

	if err := c.adapter.EnsureWindowSizeManual(ctx, session); err != nil {
		return "", adapter.CursorInfo{}, nil, err
	}
	if err := c.adapter.Resize(ctx, pane, cols, rows); err != nil {
		return "", adapter.CursorInfo{}, nil, err
	}

	info, err := c.adapter.QueryCursor(ctx, pane)
	if err != nil {
		return "", adapter.CursorInfo{}, nil, err
	}
	if info.PaneCols != cols || info.PaneRows != rows {
		if err := c.adapter.Resize(ctx, pane, cols, rows); err != nil {
			return "", adapter.CursorInfo{}, nil, err
		}
		info, err = c.adapter.QueryCursor(ctx, pane)
		if err != nil {
			return "", adapter.CursorInfo{}, nil, err
		}
		if info.PaneCols != cols || info.PaneRows != rows {
			resizeErr = &ResizeFailedErr{WantCols: cols, WantRows: rows, GotCols: info.PaneCols, GotRows: info.PaneRows}
			interactiveLog.Warn("pane resize did not converge", "session", session, "err", resizeErr)
		}
	}

	content, err := c.adapter.Capture(ctx, pane, 0, adapter.CaptureInteractive)
	if err != nil {
		return "", adapter.CursorInfo{}, resizeErr, err
	}

	now := c.now()
	c.state = &domain.InteractiveState{
		SessionName:   session,
		PaneID:        pane,
		PaneCols:      info.PaneCols,
		PaneRows:      info.PaneRows,
		CursorRow:     info.Row,
		CursorCol:     info.Col,
		CursorVisible: info.Visible,
		LastKeyAt:     now,
		Generation:    generation,
	}
	c.mouseFragmentActive = false

	return content, info, resizeErr, nil
}

// Active reports whether a workspace is currently entered.
func (c *Controller) Active() bool {
	return c.state != nil
}

// State exposes the live interactive state for callers that need to
// render cursor/selection information. Returns nil when not active.
func (c *Controller) State() *domain.InteractiveState {
	return c.state
}

// Exit leaves interactive mode, bumping the session's generation so any
// capture already in flight for the old identity is discarded.
func (c *Controller) Exit() {
	if c.state == nil {
		return
	}
	c.generations.Bump(c.state.SessionName)
	c.state = nil
}

// HandleKey runs exit arbitration, then either exits or forwards the key,
// dispatching the resulting tmux call. Returns whether interactive mode
// was exited.
func (c *Controller) HandleKey(ctx context.Context, k Key, enterMods EnterModifiers) (exited bool, err error) {
	if c.state == nil {
		return false, fmt.Errorf("interactive: HandleKey called with no active session")
	}
	now := c.now()
	c.state.LastKeyAt = now

	switch k.Kind {
	case KeyCtrlBackslash:
		c.Exit()
		return true, nil
	case KeyEscape:
		if c.state.EscapePending && !now.After(c.state.EscapeDeadline) {
			// Second Escape inside the window: both presses are consumed
			// and neither is ever forwarded (spec §4.5 Exit arbitration).
			c.state.EscapePending = false
			c.Exit()
			return true, nil
		}
		// The first Escape is held back; it is only forwarded if
		// PollEscapeTimeout later observes the window expire with no
		// second press (spec's escape_pending asynchronous-wake deadline).
		c.state.EscapePending = true
		c.state.EscapeDeadline = now.Add(DoubleEscapeWindow)
		return false, nil
	case KeyAltC, KeyAltV:
		// Copy/paste act on the capture buffer and clipboard, not the
		// pane directly; the caller invokes Copy/Paste separately.
		c.state.EscapePending = false
		return false, nil
	default:
		c.state.EscapePending = false
		return false, c.dispatch(ctx, translateKey(k, enterMods))
	}
}

// PollEscapeTimeout is driven by the core's tick loop alongside the
// Scheduler's own ticks. When a single Escape's 150ms window has expired
// with no second press, it forwards the held-back Escape now (spec §4.5:
// "A single Escape is forwarded to the agent after the window expires").
// Returns whether an Escape was forwarded.
func (c *Controller) PollEscapeTimeout(ctx context.Context) (bool, error) {
	if c.state == nil || !c.state.EscapePending {
		return false, nil
	}
	if c.now().Before(c.state.EscapeDeadline) {
		return false, nil
	}
	c.state.EscapePending = false
	if err := c.dispatch(ctx, Action{Kind: ActionSendNamed, Payload: "Escape"}); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Controller) dispatch(ctx context.Context, a Action) error {
	switch a.Kind {
	case ActionSendNamed:
		return c.adapter.SendNamedKey(ctx, c.state.SessionName, a.Payload)
	case ActionSendLiteral:
		return c.adapter.SendLiteral(ctx, c.state.SessionName, a.Payload)
	default:
		return nil
	}
}

// UpdateCursor applies a fresh cursor query result, reporting whether
// anything changed (spec's cursor overlay only needs to redraw on
// change).
func (c *Controller) UpdateCursor(info adapter.CursorInfo) bool {
	if c.state == nil {
		return false
	}
	if c.state.CursorRow == info.Row && c.state.CursorCol == info.Col &&
		c.state.CursorVisible == info.Visible &&
		c.state.PaneRows == info.PaneRows && c.state.PaneCols == info.PaneCols {
		return false
	}
	c.state.CursorRow = info.Row
	c.state.CursorCol = info.Col
	c.state.CursorVisible = info.Visible
	c.state.PaneRows = info.PaneRows
	c.state.PaneCols = info.PaneCols
	return true
}

// NoteMouseEvent records that a genuine mouse event (as opposed to a
// split fragment) was just observed.
func (c *Controller) NoteMouseEvent(now time.Time) {
	c.lastMouseEventAt = now
}

// isMouseFragmentStart / isMouseFragmentCharacter mirror the original's
// character classifiers for SGR mouse-report fragments split across
// separate key events.
func isMouseFragmentStart(ch rune) bool {
	return ch == '[' || ch == '<' || ch == 'M' || ch == 'm'
}

func isMouseFragmentCharacter(ch rune) bool {
	return ch == '[' || ch == '<' || ch == ';' || ch == 'M' || ch == 'm' || (ch >= '0' && ch <= '9')
}

// ShouldDropSplitMouseFragment is the third input-hygiene filter (spec
// §4.5): rejects characters that are actually fragments of an SGR mouse
// report arriving as ordinary keystrokes near a recent mouse event.
func (c *Controller) ShouldDropSplitMouseFragment(ch rune, now time.Time) bool {
	if c.mouseFragmentActive {
		if now.Sub(c.mouseFragmentStartedAt) > splitMouseFragmentMaxAge {
			c.mouseFragmentActive = false
		} else if isMouseFragmentCharacter(ch) {
			if ch == 'M' || ch == 'm' {
				c.mouseFragmentActive = false
			}
			return true
		} else {
			c.mouseFragmentActive = false
		}
	}

	if isMouseFragmentStart(ch) && !c.lastMouseEventAt.IsZero() &&
		now.Sub(c.lastMouseEventAt) <= splitMouseFragmentStartWindow {
		c.mouseFragmentActive = true
		c.mouseFragmentStartedAt = now
		return true
	}

	return false
}
