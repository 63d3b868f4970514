package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jordangarrison/grove/internal/adapter"
	"github.com/jordangarrison/grove/internal/domain"
	"github.com/jordangarrison/grove/internal/logging"
)

var scheduleLog = logging.ForComponent(logging.CompSchedule)

// activeRegistryWindow is how long a session remains eligible for batch
// capture after its last poll (spec §4.4 Batch capture).
const activeRegistryWindow = 30 * time.Second

// captureDispatchRate and captureDispatchBurst bound how often the
// Scheduler may issue a capture call to the adapter, regardless of how many
// sessions go due on the same tick (e.g. a burst of NoteKeystroke calls
// across many sessions). This is a safety valve on top of the interval
// table, not a replacement for it.
const (
	captureDispatchRate  = 20 // calls per second
	captureDispatchBurst = 5
)

// Capturer is the subset of the Session Adapter the Scheduler drives.
type Capturer interface {
	Capture(ctx context.Context, target string, lines int, mode adapter.CaptureMode) (string, error)
	CaptureBatch(ctx context.Context, targets []string, lines int, mode adapter.CaptureMode) (map[string]string, error)
}

// CaptureResult is one session's capture outcome, tagged with the
// generation it was dispatched at so stale results can be discarded before
// any state mutation (spec §4.4 Generation invariants).
type CaptureResult struct {
	Session    string
	Generation uint64
	Content    string
	Err        error
}

type sessionState struct {
	nextPollAt   time.Time
	debounceAt   time.Time
	lastPolledAt time.Time
	mode         adapter.CaptureMode
	ctx          PollContext
}

// Scheduler is the single-ticker poll loop (spec §4.4).
type Scheduler struct {
	capture     Capturer
	generations *domain.Generations
	now         func() time.Time
	limiter     *rate.Limiter

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// New returns a Scheduler driving capture through the given adapter.
func New(capture Capturer, generations *domain.Generations) *Scheduler {
	return &Scheduler{
		capture:     capture,
		generations: generations,
		now:         time.Now,
		limiter:     rate.NewLimiter(rate.Limit(captureDispatchRate), captureDispatchBurst),
		sessions:    make(map[string]*sessionState),
	}
}

// Track registers (or updates) a session's polling context and computes
// its next deadline from the interval table, respecting the anti-
// starvation invariant: an earlier pending deadline is never postponed.
func (s *Scheduler) Track(session string, ctx PollContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[session]
	if !ok {
		st = &sessionState{}
		s.sessions[session] = st
	}
	st.ctx = ctx

	interval, shouldPoll := Interval(ctx)
	if !shouldPoll {
		return
	}
	candidate := s.now().Add(interval)
	if st.nextPollAt.IsZero() || candidate.Before(st.nextPollAt) {
		st.nextPollAt = candidate
	}
}

// Untrack removes a session entirely, e.g. when its workspace disappears.
func (s *Scheduler) Untrack(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
}

// NoteKeystroke schedules the debounced interactive poll for a session.
// The scheduled deadline is the earliest of the adaptive deadline already
// pending and the debounce deadline; an earlier pending tick is retained.
func (s *Scheduler) NoteKeystroke(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[session]
	if !ok {
		st = &sessionState{}
		s.sessions[session] = st
	}
	st.debounceAt = s.now().Add(DebounceInterval)
	if st.nextPollAt.IsZero() || st.debounceAt.Before(st.nextPollAt) {
		st.nextPollAt = st.debounceAt
	}
}

// SetMode records which capture mode (normal vs. interactive) a session
// should be captured with, e.g. when entering/leaving the Interactive
// Controller.
func (s *Scheduler) SetMode(session string, mode adapter.CaptureMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[session]
	if !ok {
		st = &sessionState{}
		s.sessions[session] = st
	}
	st.mode = mode
}

// due returns the sessions whose deadline has passed as of now, clearing
// any consumed debounce deadline.
func (s *Scheduler) due(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for name, st := range s.sessions {
		if st.nextPollAt.IsZero() || st.nextPollAt.After(now) {
			continue
		}
		names = append(names, name)
		st.nextPollAt = time.Time{}
		st.debounceAt = time.Time{}
		st.lastPolledAt = now
	}
	sort.Strings(names)
	return names
}

// activeSessions returns sessions polled within the last 30s, forming the
// batch-eligible registry.
func (s *Scheduler) activeSessions(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, st := range s.sessions {
		if !st.lastPolledAt.IsZero() && now.Sub(st.lastPolledAt) <= activeRegistryWindow {
			names = append(names, name)
		}
	}
	return names
}

// batchTargets unions the active-session registry with the sessions due
// this tick, restricted to normal-mode sessions, so the batched capture
// call covers more than the minimum due set (spec §4.4 Batch capture).
func (s *Scheduler) batchTargets(now time.Time, due []string) []string {
	seen := make(map[string]struct{}, len(due))
	targets := make([]string, 0, len(due))
	for _, name := range due {
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	for _, name := range s.activeSessions(now) {
		if _, ok := seen[name]; ok {
			continue
		}
		if s.modeOf(name) != adapter.CaptureNormal {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	sort.Strings(targets)
	return targets
}

// modeOf returns the recorded capture mode for a session.
func (s *Scheduler) modeOf(session string) adapter.CaptureMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[session]; ok {
		return st.mode
	}
	return adapter.CaptureNormal
}

// Tick evaluates due sessions at the given instant, dispatches capture
// work (individually or batched), and returns tagged results. Sessions
// sharing the same join-wrapped setting are captured together; a session
// whose mode differs is captured individually (spec §4.4 Batch capture).
func (s *Scheduler) Tick(ctx context.Context, lines int) []CaptureResult {
	now := s.now()
	due := s.due(now)
	if len(due) == 0 {
		return nil
	}

	generationOf := make(map[string]uint64, len(due))
	for _, name := range due {
		generationOf[name] = s.generations.Current(name)
	}

	if len(due) == 1 {
		name := due[0]
		if err := s.limiter.Wait(ctx); err != nil {
			return []CaptureResult{{Session: name, Generation: generationOf[name], Err: err}}
		}
		content, err := s.capture.Capture(ctx, name, lines, s.modeOf(name))
		return []CaptureResult{{Session: name, Generation: generationOf[name], Content: content, Err: err}}
	}

	normal, interactive := partitionByMode(due, s.modeOf)

	var results []CaptureResult
	if len(normal) > 0 {
		// Widen the batch request to the full active-session registry
		// (not just the sessions due this tick) so a single singleflight
		// call amortizes across near-simultaneous deadlines.
		targets := s.batchTargets(now, normal)
		if err := s.limiter.Wait(ctx); err != nil {
			results = append(results, demux(normal, nil, err, generationOf)...)
		} else {
			batched, err := s.capture.CaptureBatch(ctx, targets, lines, adapter.CaptureNormal)
			results = append(results, demux(normal, batched, err, generationOf)...)
		}
	}
	for _, name := range interactive {
		if err := s.limiter.Wait(ctx); err != nil {
			results = append(results, CaptureResult{Session: name, Generation: generationOf[name], Err: err})
			continue
		}
		content, err := s.capture.Capture(ctx, name, lines, adapter.CaptureInteractive)
		results = append(results, CaptureResult{Session: name, Generation: generationOf[name], Content: content, Err: err})
	}
	return results
}

func partitionByMode(names []string, modeOf func(string) adapter.CaptureMode) (normal, interactive []string) {
	for _, n := range names {
		if modeOf(n) == adapter.CaptureInteractive {
			interactive = append(interactive, n)
		} else {
			normal = append(normal, n)
		}
	}
	return
}

func demux(names []string, batched map[string]string, batchErr error, generationOf map[string]uint64) []CaptureResult {
	results := make([]CaptureResult, 0, len(names))
	for _, name := range names {
		content, ok := batched[name]
		var err error
		if !ok {
			if batchErr != nil {
				err = batchErr
			}
		}
		results = append(results, CaptureResult{Session: name, Generation: generationOf[name], Content: content, Err: err})
	}
	return results
}

// ApplyResult discards a result whose generation is stale (differs from the
// session's current generation) before any caller-side state mutation,
// returning false when the result should be dropped.
func (s *Scheduler) ApplyResult(r CaptureResult) bool {
	if s.generations.IsStale(r.Session, r.Generation) {
		scheduleLog.Debug("discarding stale capture result", "session", r.Session, "generation", r.Generation)
		return false
	}
	return true
}

