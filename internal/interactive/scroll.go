package interactive

import "time"

// Scroll-wheel debounce constants (spec §4.5 scroll handling), grounded
// on original_source/src/preview.rs's SCROLL_DEBOUNCE_MS /
// SCROLL_BURST_DEBOUNCE_MS.
const (
	scrollDebounce      = 40 * time.Millisecond
	scrollBurstDebounce = 120 * time.Millisecond
	scrollBurstFloor    = 4
)

// ScrollState tracks one workspace's preview scroll position
// independently of the Interactive Controller (scrolling works in
// List/Preview too).
type ScrollState struct {
	Offset           int
	AutoScroll       bool
	ScrollBurstCount int
	lastScrollAt     time.Time
	hasScrolled      bool
}

// NewScrollState returns a state pinned to the bottom (auto-scroll on).
func NewScrollState() *ScrollState {
	return &ScrollState{AutoScroll: true}
}

func maxScrollOffset(totalLines, height int) int {
	if height <= 0 {
		return 0
	}
	if totalLines <= height {
		return 0
	}
	return totalLines - height
}

// Scroll applies one scroll-wheel delta (negative = up/back into
// scrollback, positive = down/toward bottom), debounced against
// rapid-fire wheel events in bursts. Returns whether the offset changed.
func (s *ScrollState) Scroll(delta, totalLines, viewportHeight int, now time.Time) bool {
	if delta == 0 {
		return false
	}

	max := maxScrollOffset(totalLines, viewportHeight)
	if max == 0 {
		s.Offset = 0
		s.AutoScroll = true
		return false
	}

	if s.hasScrolled {
		sinceLast := now.Sub(s.lastScrollAt)
		if sinceLast < scrollDebounce {
			s.ScrollBurstCount++
			burstDebounce := scrollDebounce
			if s.ScrollBurstCount > scrollBurstFloor {
				burstDebounce = scrollBurstDebounce
			}
			if sinceLast < burstDebounce {
				return false
			}
		} else {
			s.ScrollBurstCount = 1
		}
	} else {
		s.ScrollBurstCount = 1
	}
	s.lastScrollAt = now
	s.hasScrolled = true

	if delta < 0 {
		next := s.Offset - delta // delta negative, so this adds |delta|
		if next > max {
			next = max
		}
		if next == s.Offset {
			return false
		}
		s.AutoScroll = false
		s.Offset = next
		return true
	}

	next := s.Offset - delta
	if next < 0 {
		next = 0
	}
	if next == s.Offset {
		return false
	}
	s.Offset = next
	if s.Offset == 0 {
		s.AutoScroll = true
	}
	return true
}

// ClampToContent re-pins the offset within range after the underlying
// line buffer shrinks or grows, e.g. on every fresh capture. It clamps
// against the raw line count rather than the viewport-aware max (a
// capture can arrive while the pane is smaller than the full backlog),
// matching original_source/src/preview.rs's apply_capture, which
// clamps offset to lines.len() and only re-derives the viewport-aware
// max lazily when rendering.
func (s *ScrollState) ClampToContent(totalLines, viewportHeight int) {
	if s.Offset > totalLines {
		s.Offset = totalLines
	}
	if s.AutoScroll {
		s.Offset = 0
	}
}

// JumpToBottom snaps the preview back to the live tail, e.g. before a
// paste is sent so the operator can see what just happened.
func (s *ScrollState) JumpToBottom() {
	s.Offset = 0
	s.AutoScroll = true
}

// VisibleLines returns the window of lines currently in view given the
// buffer's full line set and the viewport height.
func (s *ScrollState) VisibleLines(lines []string, height int) []string {
	if height <= 0 || len(lines) == 0 {
		return nil
	}
	max := maxScrollOffset(len(lines), height)
	offset := s.Offset
	if offset > max {
		offset = max
	}
	end := len(lines) - offset
	start := end - height
	if start < 0 {
		start = 0
	}
	return lines[start:end]
}
