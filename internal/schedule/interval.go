// Package schedule implements Grove's Scheduler: the single-ticker poll
// loop that decides, for every live session, when its next pane capture is
// due (spec §4.4), grounded on original_source/src/hardening.rs's
// poll_interval and bump_generation/drop_missing_generations.
package schedule

import (
	"time"

	"github.com/jordangarrison/grove/internal/domain"
)

// TickInterval drives the scheduling loop itself. The core loop's ticker
// runs at this period whether or not any workspace has a live session;
// Tick returns early when no session is due.
const TickInterval = 50 * time.Millisecond

// DebounceInterval is the deadline assigned to a session on every keystroke
// while interactive.
const DebounceInterval = 20 * time.Millisecond

// Poll interval tiers (spec §4.4 table).
const (
	intervalInteractiveHot  = 50 * time.Millisecond
	intervalInteractiveWarm = 200 * time.Millisecond
	intervalInteractiveCold = 500 * time.Millisecond
	intervalSelectedRunning = 200 * time.Millisecond
	intervalSelectedWaiting = 2 * time.Second
	intervalBackgroundLive  = 10 * time.Second
	intervalSettled         = 20 * time.Second
	// intervalPreviewFocused is a supplemental tier for the preview-focus
	// axis spec.md's table is silent on (original's is_preview_focused);
	// it never overrides a row the table names explicitly.
	intervalPreviewFocused = 500 * time.Millisecond
)

const (
	interactiveHotWindow  = 2 * time.Second
	interactiveWarmWindow = 10 * time.Second
)

// PollContext describes everything the interval table needs to decide a
// session's next deadline.
type PollContext struct {
	Interactive      bool
	TimeSinceLastKey time.Duration
	Selected         bool
	Status           domain.Status
	PreviewFocused   bool
}

// Interval returns the poll interval for a session and whether it should
// be polled at all (spec §4.4 table, applied top to bottom).
func Interval(ctx PollContext) (time.Duration, bool) {
	switch {
	case ctx.Interactive && ctx.TimeSinceLastKey < interactiveHotWindow:
		return intervalInteractiveHot, true
	case ctx.Interactive && ctx.TimeSinceLastKey < interactiveWarmWindow:
		return intervalInteractiveWarm, true
	case ctx.Interactive:
		return intervalInteractiveCold, true
	case ctx.Selected && (ctx.Status == domain.StatusActive || ctx.Status == domain.StatusThinking):
		return intervalSelectedRunning, true
	case ctx.Selected && ctx.Status == domain.StatusWaiting:
		return intervalSelectedWaiting, true
	case ctx.Status == domain.StatusDone || ctx.Status == domain.StatusError:
		return intervalSettled, true
	case ctx.Status == domain.StatusIdle || ctx.Status == domain.StatusMain:
		return 0, false
	case ctx.PreviewFocused:
		return intervalPreviewFocused, true
	case ctx.Status.HasSession():
		return intervalBackgroundLive, true
	default:
		return 0, false
	}
}
