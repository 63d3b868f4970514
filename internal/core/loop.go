package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordangarrison/grove/internal/adapter"
	"github.com/jordangarrison/grove/internal/capture"
	"github.com/jordangarrison/grove/internal/domain"
	"github.com/jordangarrison/grove/internal/interactive"
	"github.com/jordangarrison/grove/internal/logging"
	"github.com/jordangarrison/grove/internal/schedule"
)

// bracketedPasteEnableSeq/DisableSeq are the DECSET/DECRST toggles a
// well-behaved full-screen program emits to opt in or out of bracketed
// paste (spec §4.5 Copy/paste). They appear in raw capture output; by the
// time capture.Evaluate produces Cleaned, StripMouseFragments has already
// removed them, so detection must run against the raw bytes.
const (
	bracketedPasteEnableSeq  = "\x1b[?2004h"
	bracketedPasteDisableSeq = "\x1b[?2004l"
)

// detectBracketedPasteMode reports the most recent bracketed-paste toggle
// found in raw, if any. ok is false when neither sequence appears, meaning
// the pane's mode is unchanged from what it was already known to be.
func detectBracketedPasteMode(raw string) (enabled, ok bool) {
	enableIdx := strings.LastIndex(raw, bracketedPasteEnableSeq)
	disableIdx := strings.LastIndex(raw, bracketedPasteDisableSeq)
	if enableIdx < 0 && disableIdx < 0 {
		return false, false
	}
	return enableIdx > disableIdx, true
}

var coreLog = logging.ForComponent(logging.CompCore)

// Launcher is the subset of adapter.Adapter the core needs to re-launch an
// orphaned workspace's agent (spec's Orphan recovery): create the fresh
// multiplexer session and feed it the resolved launch command. Scoped down
// from the full Adapter surface the way interactive.Adapter is.
type Launcher interface {
	CreateSession(ctx context.Context, name, cwd string, historyLimit int) error
	SendLiteral(ctx context.Context, session, text string) error
}

// sessionRecord is the core's per-session bookkeeping: the change-detection
// digest, the bounded line/record ring buffer, and the last probe result
// used to derive a session's non-authoritative Status fields.
type sessionRecord struct {
	digest *capture.Digest
	ring   *capture.RingBuffer
	probe  capture.ProbeResult
}

// Loop is the application core (spec §5): a single-threaded cooperative
// event loop over a bounded channel of tagged messages, driving a Scheduler
// tick, applying capture results under generation gating, and forwarding
// the Interactive Controller's own asynchronous Escape-timeout wake
// alongside it. Messages originate from Run's own internal ticker and from
// SendInput, which an outer TUI program (not in scope here) calls.
type Loop struct {
	scheduler   *schedule.Scheduler
	controller  *interactive.Controller
	generations *domain.Generations
	debugLog    *DebugLog
	launcher    Launcher

	sessions map[string]*sessionRecord

	// outbound is the bounded queue the core uses for outgoing work (spec
	// §5 "enqueuing an outbound work item" is one of the three points the
	// core may suspend at).
	outbound chan func(context.Context)

	inbox chan message

	// OnCaptureApplied is invoked after a non-stale capture result has been
	// folded into session state, for an outer renderer to redraw from.
	OnCaptureApplied func(session string, rec domain.CaptureRecord, probe capture.ProbeResult)
	// OnFailure is invoked for every classified Failure the loop observes,
	// for an outer renderer to flash a status message (spec §7).
	OnFailure func(f *Failure)
}

// outboundQueueCapacity bounds the core's outbound work queue (spec §5
// "bounded queue"); a full queue applies backpressure to callers of Enqueue
// rather than growing unbounded.
const outboundQueueCapacity = 64

// inboxCapacity bounds the message channel the core's Run loop consumes.
const inboxCapacity = 256

// message is an input event queued for the core loop; ticks are handled
// directly off the ticker channel in Run rather than routed through here,
// since they originate inside the loop itself and carry no payload.
type message struct {
	input func(ctx context.Context) error
}

// NewLoop wires a Scheduler and Interactive Controller (both already bound
// to a shared Adapter and the same *domain.Generations table) into one
// event loop. launcher is used only for Orphan recovery (RelaunchOrphan);
// it is typically the same Adapter the Scheduler and Controller share.
func NewLoop(scheduler *schedule.Scheduler, controller *interactive.Controller, generations *domain.Generations, debugLog *DebugLog, launcher Launcher) *Loop {
	return &Loop{
		scheduler:   scheduler,
		controller:  controller,
		generations: generations,
		debugLog:    debugLog,
		launcher:    launcher,
		sessions:    make(map[string]*sessionRecord),
		outbound:    make(chan func(context.Context), outboundQueueCapacity),
		inbox:       make(chan message, inboxCapacity),
	}
}

// RelaunchOrphan re-launches an orphaned workspace's agent (spec's Orphan
// recovery, testable scenario 6): a fresh multiplexer session is created
// at cwd and the resolved agent command is fed into it. The session's
// generation is reset so that the Controller.Enter call the caller makes
// immediately afterward bumps it to 1 for the new session identity,
// rather than continuing from whatever the dead session's counter left
// off at.
func (l *Loop) RelaunchOrphan(ctx context.Context, session, cwd, agentCommand string, historyLimit int) error {
	if err := l.launcher.CreateSession(ctx, session, cwd, historyLimit); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := l.launcher.SendLiteral(ctx, session, agentCommand+"\n"); err != nil {
		return fmt.Errorf("launch agent: %w", err)
	}
	l.generations.Reset(session)
	return nil
}

// recordFor returns (creating if absent) a session's bookkeeping record.
func (l *Loop) recordFor(session string) *sessionRecord {
	rec, ok := l.sessions[session]
	if !ok {
		rec = &sessionRecord{ring: capture.NewRingBuffer()}
		l.sessions[session] = rec
	}
	return rec
}

// Forget drops a session's bookkeeping, e.g. on session death or workspace
// deletion.
func (l *Loop) Forget(session string) {
	delete(l.sessions, session)
	l.scheduler.Untrack(session)
}

// Enqueue submits outbound work (e.g. a launch or setup-script
// invocation) to the bounded queue; it suspends the caller, not the core,
// if the queue is full.
func (l *Loop) Enqueue(ctx context.Context, work func(context.Context)) error {
	select {
	case l.outbound <- work:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendInput is how an outer input-reading goroutine hands a keystroke to
// the core loop; input is processed strictly in arrival order relative to
// other messages already in the inbox.
func (l *Loop) SendInput(ctx context.Context, handle func(ctx context.Context) error) error {
	select {
	case l.inbox <- message{input: handle}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the event loop until ctx is cancelled: a 50ms ticker (matching
// schedule.TickInterval) drives Scheduler.Tick and the Interactive
// Controller's Escape-timeout poll; capture results and queued input are
// applied as they arrive. This is the loop's only suspension points (spec
// §5): waiting on a message, enqueuing outbound work, and the debug-record
// writes made through debugEvent.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(schedule.TickInterval)
	defer ticker.Stop()

	go l.runOutboundWorkers(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.handleTick(ctx)
		case msg := <-l.inbox:
			l.handleMessage(ctx, msg)
		}
	}
}

func (l *Loop) runOutboundWorkers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case work := <-l.outbound:
			work(ctx)
		}
	}
}

func (l *Loop) handleTick(ctx context.Context) {
	results := l.scheduler.Tick(ctx, domain.CaptureFetchLines)
	if len(results) > 0 {
		l.applyResults(results)
	}

	forwarded, err := l.controller.PollEscapeTimeout(ctx)
	if err != nil {
		l.fail(Transient("", "forward held-back Escape", err))
	}
	if forwarded {
		l.debugEvent("escape_forwarded", "info", nil)
	}
}

func (l *Loop) handleMessage(ctx context.Context, msg message) {
	if msg.input == nil {
		return
	}
	if err := msg.input(ctx); err != nil {
		l.fail(classifyAdapterErr("", err))
	}
}

// applyResults folds each capture result into session state under
// generation gating (spec §4.4 Generation invariants): a stale result never
// mutates AgentSession/CaptureRecord state.
func (l *Loop) applyResults(results []schedule.CaptureResult) {
	for _, r := range results {
		if !l.scheduler.ApplyResult(r) {
			continue
		}
		l.applyOneResult(r)
	}
}

func (l *Loop) applyOneResult(r schedule.CaptureResult) {
	if r.Err != nil {
		l.handleCaptureError(r)
		return
	}

	rec := l.recordFor(r.Session)
	change := capture.Evaluate(rec.digest, r.Content)
	rec.digest = &change.Digest

	record := domain.CaptureRecord{
		Timestamp:      time.Now(),
		Raw:            r.Content,
		Cleaned:        change.Cleaned,
		Render:         change.Render,
		RawHash:        change.Digest.RawHash,
		RawLen:         change.Digest.RawLen,
		CleanedHash:    change.Digest.CleanedHash,
		ChangedRaw:     change.ChangedRaw,
		ChangedCleaned: change.ChangedCleaned,
	}
	rec.ring.Push(record)

	if st := l.controller.State(); st != nil && st.SessionName == r.Session {
		if enabled, ok := detectBracketedPasteMode(r.Content); ok {
			l.controller.NoteBracketedPasteMode(enabled)
		}
	}

	if change.ChangedCleaned {
		rec.probe = capture.Probe(change.Cleaned)
	}

	if l.OnCaptureApplied != nil {
		l.OnCaptureApplied(r.Session, record, rec.probe)
	}
}

// handleCaptureError classifies an adapter-reported capture failure and
// reacts per spec §7: a missing session/pane is session death, everything
// else is transient.
func (l *Loop) handleCaptureError(r schedule.CaptureResult) {
	f := classifyAdapterErr(r.Session, r.Err)
	if f.Kind == KindSessionDeath {
		if l.controller.Active() && l.controller.State() != nil && l.controller.State().SessionName == r.Session {
			l.controller.Exit()
		}
		l.Forget(r.Session)
	}
	l.fail(f)
}

// classifyAdapterErr maps a raw adapter error into a Failure. Session-not-
// found style errors (adapter.classifyError's sentinel text) are session
// death; everything else is treated as transient per spec §7's default.
func classifyAdapterErr(session string, err error) *Failure {
	if err == nil {
		return Transient(session, "", nil)
	}
	if errors.Is(err, adapter.ErrSessionNotFound) {
		return SessionDeath(session, "multiplexer session no longer exists", err)
	}
	return Transient(session, err.Error(), err)
}

func (l *Loop) fail(f *Failure) {
	if f == nil {
		return
	}
	switch f.Kind {
	case KindInvariantViolation:
		// Never surfaced to the operator; debug record only (spec §7 kind 5).
		l.debugEvent("error", f.Kind.String(), f.Message)
		return
	default:
		coreLog.Warn("failure", "kind", f.Kind.String(), "session", f.Session, "message", f.Message)
		l.debugEvent("error", f.Kind.String(), f.Message)
		if l.OnFailure != nil {
			l.OnFailure(f)
		}
	}
}

func (l *Loop) debugEvent(event, kind string, data any) {
	if l.debugLog == nil {
		return
	}
	if err := l.debugLog.Write(event, kind, data); err != nil {
		coreLog.Warn("debug record write failed", "err", err)
	}
}
