package capture

import (
	"github.com/jordangarrison/grove/internal/adapter"
	"github.com/jordangarrison/grove/internal/domain"
)

// Digest is the pair of hashes + raw length used for the two-tier change
// detection fast path (spec §4.2 Change detection).
type Digest struct {
	RawHash     string
	RawLen      int
	CleanedHash string
}

// Change is the result of evaluating one capture against the previous
// digest: the two derived streams plus the two change flags. Invariant:
// ChangedCleaned implies ChangedRaw (spec §3 CaptureRecord invariant).
type Change struct {
	Digest         Digest
	ChangedRaw     bool
	ChangedCleaned bool
	Render         string
	Cleaned        string
}

// Evaluate computes the render/cleaned streams and change flags for a new
// raw capture given the previous digest (nil on the first capture for a
// session). This is the single entry point the Reconciler/Scheduler use
// after every poll.
func Evaluate(previous *Digest, raw string) Change {
	render := StripNonSGRControl(raw)
	cleaned := StripMouseFragments(StripSGR(render))

	digest := Digest{
		RawHash:     adapter.ContentHash(raw),
		RawLen:      len(raw),
		CleanedHash: adapter.ContentHash(cleaned),
	}

	if previous == nil {
		return Change{Digest: digest, ChangedRaw: true, ChangedCleaned: true, Render: render, Cleaned: cleaned}
	}

	changedRaw := previous.RawHash != digest.RawHash || previous.RawLen != digest.RawLen
	changedCleaned := previous.CleanedHash != digest.CleanedHash

	return Change{
		Digest:         digest,
		ChangedRaw:     changedRaw,
		ChangedCleaned: changedCleaned,
		Render:         render,
		Cleaned:        cleaned,
	}
}

// RingBuffer holds a session's last CaptureRingCapacity CaptureRecords and
// its bounded line storage, which Push rebuilds only on a cleaned-hash
// change, matching spec §4.2's "only a cleaned-hash change causes a full
// re-split".
type RingBuffer struct {
	records []domain.CaptureRecord
	lines   []string
}

// NewRingBuffer returns an empty per-session capture ring buffer.
func NewRingBuffer() *RingBuffer {
	return &RingBuffer{}
}

// Lines returns the currently stored, capacity-bounded cleaned lines.
func (r *RingBuffer) Lines() []string { return r.lines }

// Push records a new capture and, when the cleaned content changed,
// rebuilds the bounded line storage; an unchanged capture never mutates
// stored line data (spec §4.2 invariant d).
func (r *RingBuffer) Push(rec domain.CaptureRecord) {
	if len(r.records) >= domain.CaptureRingCapacity {
		r.records = r.records[1:]
	}
	r.records = append(r.records, rec)

	if rec.ChangedCleaned {
		r.lines = TrimToCapacity(SplitLines(rec.Cleaned), domain.OutputBufferCapacity)
	}
}

// Records returns the diagnostic ring buffer contents, oldest first.
func (r *RingBuffer) Records() []domain.CaptureRecord { return r.records }
