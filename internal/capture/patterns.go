package capture

import "strings"

// patternProbeLines is how many trailing cleaned lines are scanned for
// status substrings (spec §4.2 Output-pattern status probes).
const patternProbeLines = 20

var waitingPromptSubstrings = []string{
	"[y/n]", "(y/n)", "allow edit", "allow bash", "approve", "confirm",
}

var thinkingMarkers = []string{
	"thinking...",
}

var completionSubstrings = []string{
	"task completed", "finished", "exited with code 0",
}

var failureSubstrings = []string{
	"error:", "failed", "panic:", "traceback",
}

// ProbeResult reports which non-authoritative status patterns were found
// in the tail of a cleaned capture. Waiting only records that a prompt
// substring was seen; the Active/Waiting status itself comes from the
// agent's own session files (spec §4.3).
type ProbeResult struct {
	Waiting  bool
	Thinking bool
	Done     bool
	Error    bool
}

// Probe scans the last patternProbeLines of cleaned for the canonical
// substrings that inform Thinking/Done/Error classification.
func Probe(cleaned string) ProbeResult {
	lines := SplitLines(cleaned)
	tail := lines
	if len(tail) > patternProbeLines {
		tail = tail[len(tail)-patternProbeLines:]
	}
	text := strings.ToLower(strings.Join(tail, "\n"))

	var r ProbeResult
	r.Waiting = containsAny(text, waitingPromptSubstrings)
	r.Thinking = containsAny(text, thinkingMarkers) || hasUnclosedTag(cleaned, "<thinking>", "</thinking>")
	r.Done = containsAny(text, completionSubstrings)
	r.Error = containsAny(text, failureSubstrings)
	return r
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// hasUnclosedTag reports whether open appears after the last close (or
// close never appears at all), signalling an in-progress <thinking> block.
// Grounded on original_source's has_unclosed_tag.
func hasUnclosedTag(text, open, close string) bool {
	openIdx := strings.LastIndex(text, open)
	if openIdx < 0 {
		return false
	}
	closeIdx := strings.LastIndex(text, close)
	if closeIdx < 0 {
		return true
	}
	return closeIdx < openIdx
}
