package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugRecord is one line of the append-only NDJSON debug stream (spec §6).
type DebugRecord struct {
	TS    int64  `json:"ts"`
	Event string `json:"event"`
	Kind  string `json:"kind"`
	Data  any    `json:"data,omitempty"`
}

// DebugLog is the core's single append-only NDJSON writer. Matching spec
// §5's "single writer" discipline, every call site shares one *DebugLog
// rather than opening the file themselves.
type DebugLog struct {
	mu sync.Mutex
	f  *os.File
	enc *json.Encoder
}

// OpenDebugLog creates (or, on PID reuse within the same second, appends to)
// .grove/debug-record-{startUnix}-{pid}.jsonl under projectRoot.
func OpenDebugLog(projectRoot string, startUnix int64, pid int) (*DebugLog, error) {
	dir := filepath.Join(projectRoot, ".grove")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create .grove dir: %w", err)
	}
	name := fmt.Sprintf("debug-record-%d-%d.jsonl", startUnix, pid)
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open debug record: %w", err)
	}
	return &DebugLog{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one NDJSON record. Write errors are themselves logged by
// the caller via the structured logger, not surfaced to the operator — a
// debug stream failure is never fatal to the core loop.
func (d *DebugLog) Write(event, kind string, data any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enc.Encode(DebugRecord{
		TS:    time.Now().UnixMilli(),
		Event: event,
		Kind:  kind,
		Data:  data,
	})
}

// Close flushes and closes the underlying file.
func (d *DebugLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
