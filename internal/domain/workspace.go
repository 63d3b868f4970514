// Package domain holds Grove's core data model: workspaces, their agent
// sessions, capture records, interactive state, and poll generations. It has
// no dependency on tmux, git, or the filesystem — those live in adapter,
// reconcile, capture, and schedule, which build on these types.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// AgentKind identifies which coding agent a workspace runs.
type AgentKind int

const (
	AgentUnsupported AgentKind = iota
	AgentClaude
	AgentCodex
	AgentOpenCode
)

// agentMarkers mirrors the single-line contents of a workspace's
// .grove-agent marker file.
var agentMarkers = map[AgentKind]string{
	AgentClaude:   "claude",
	AgentCodex:    "codex",
	AgentOpenCode: "opencode",
}

// Marker returns the .grove-agent file contents for this agent kind.
func (a AgentKind) Marker() string {
	return agentMarkers[a]
}

// AllowsCursorOverlay reports whether the Interactive Controller may draw
// its own cursor glyph over this agent's output. Codex renders its own
// cursor in-stream, so a second overlay would double it up.
func (a AgentKind) AllowsCursorOverlay() bool {
	return a != AgentCodex
}

// CommandOverrideEnvVar returns the environment variable that, if set to a
// non-blank value, overrides the default launch command for this agent.
func (a AgentKind) CommandOverrideEnvVar() string {
	switch a {
	case AgentClaude:
		return "GROVE_CLAUDE_CMD"
	case AgentCodex:
		return "GROVE_CODEX_CMD"
	case AgentOpenCode:
		return "GROVE_OPENCODE_CMD"
	default:
		return ""
	}
}

// AgentKindFromMarker parses a .grove-agent marker's contents. Unknown
// values are reported via ok=false; callers mark the workspace Unsupported
// rather than rejecting it outright.
func AgentKindFromMarker(marker string) (kind AgentKind, ok bool) {
	marker = strings.TrimSpace(marker)
	for k, v := range agentMarkers {
		if v == marker {
			return k, true
		}
	}
	return AgentUnsupported, false
}

// Status is the sum of a workspace's lifecycle states.
type Status int

const (
	StatusMain Status = iota
	StatusIdle
	StatusActive
	StatusThinking
	StatusWaiting
	StatusDone
	StatusError
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusMain:
		return "Main"
	case StatusIdle:
		return "Idle"
	case StatusActive:
		return "Active"
	case StatusThinking:
		return "Thinking"
	case StatusWaiting:
		return "Waiting"
	case StatusDone:
		return "Done"
	case StatusError:
		return "Error"
	case StatusUnsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// HasSession reports whether this status implies a live agent session.
func (s Status) HasSession() bool {
	switch s {
	case StatusActive, StatusThinking, StatusWaiting, StatusDone, StatusError:
		return true
	default:
		return false
	}
}

// IsRunning reports whether the agent is actively producing or expected to
// produce further output (as opposed to having finished or failed).
func (s Status) IsRunning() bool {
	switch s {
	case StatusActive, StatusThinking, StatusWaiting:
		return true
	default:
		return false
	}
}

// nameSanitizer replaces any character outside [A-Za-z0-9_-] with a hyphen,
// matching the multiplexer's permitted session-name character class.
var nameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeName applies Grove's session/slug character-class rule.
func SanitizeName(name string) string {
	return nameSanitizer.ReplaceAllString(name, "-")
}

const sessionPrefix = "grove-ws-"

// SessionName computes the deterministic tmux session name for a workspace,
// optionally scoped to a project name: grove-ws-{project-}{workspace}.
func SessionName(projectName, workspaceName string) string {
	slug := SanitizeName(workspaceName)
	if projectName != "" {
		slug = SanitizeName(projectName) + "-" + slug
	}
	return sessionPrefix + slug
}

// GitPreviewSessionName addresses the companion session used for a
// read-only git-status preview alongside the agent session.
func GitPreviewSessionName(projectName, workspaceName string) string {
	return SessionName(projectName, workspaceName) + "-git"
}

// Workspace is an isolated working copy of a project's source tree.
type Workspace struct {
	Name           string
	Path           string
	Branch         string
	BaseBranch     string
	AgentKind      AgentKind
	Status         Status
	IsMain         bool
	IsOrphaned     bool
	SupportedAgent bool

	// ProjectName and ProjectPath scope a workspace to its owning project;
	// both are optional (single-project invocations leave them empty).
	ProjectName string
	ProjectPath string

	// LastActivityUnix backs the "sorted by last-activity then name"
	// ordering rule for the reconciled workspace list.
	LastActivityUnix int64

	// LastError is surfaced in the list without failing the whole refresh,
	// per the Reconciler's partial-failure policy.
	LastError error
}

// SessionName is this workspace's deterministic tmux session name.
func (w *Workspace) SessionName() string {
	return SessionName(w.ProjectName, w.Name)
}

// AgentSession is the live multiplexer session bound to a non-main
// workspace. It is owned exclusively by the Workspace and destroyed on
// stop or delete.
type AgentSession struct {
	SessionName   string
	PaneID        string
	OutputBuffer  []string // capacity: OutputBufferCapacity rendered lines
	LastOutputAt  time.Time
	WaitingPrompt string
}

// OutputBufferCapacity is the bounded number of rendered lines retained per
// session; captures fetch CaptureFetchLines to provide trim margin.
const (
	OutputBufferCapacity = 500
	CaptureFetchLines    = 600
)

// CaptureRecord is an immutable snapshot of one poll result.
type CaptureRecord struct {
	Timestamp    time.Time
	Raw          string
	Cleaned      string
	Render       string
	RawHash      string
	RawLen       int
	CleanedHash  string
	ChangedRaw   bool
	ChangedCleaned bool
	CursorRow    int
	CursorCol    int
	CursorVisible bool
}

// CaptureRingCapacity bounds the per-session diagnostic ring buffer.
const CaptureRingCapacity = 10

// InteractiveState is present exactly when the operator has entered
// keystroke-forwarding mode on a selected workspace.
type InteractiveState struct {
	SessionName  string
	PaneID       string
	PaneCols     int
	PaneRows     int

	CursorRow     int
	CursorCol     int
	CursorVisible bool

	LastKeyAt time.Time

	LastScrollAt     time.Time
	ScrollBurstCount int

	EscapePending  bool
	EscapeDeadline time.Time

	BracketedPasteEnabled bool

	SelectionActive bool
	SelAnchorRow    int
	SelAnchorCol    int
	SelExtentRow    int
	SelExtentCol    int

	Generation uint64
}
