package reconcile

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jordangarrison/grove/internal/domain"
)

// activeFastPathWindow is how recent a session file's mtime must be to
// short-circuit straight to Active without parsing the tail (spec §4.3).
const activeFastPathWindow = 30 * time.Second

// sessionTailScanBytes bounds how much of a session file's tail is read
// when the fast path doesn't apply.
const sessionTailScanBytes = 64 * 1024

// HomeSessionProbe implements SessionProbe against the real Claude/Codex
// session-file layout under the user's home directory.
type HomeSessionProbe struct {
	ClaudeProjectsDir string // defaults to ~/.claude/projects
	CodexSessionsDir  string // defaults to ~/.codex/sessions
}

// NewHomeSessionProbe resolves the default probe paths under $HOME.
func NewHomeSessionProbe() *HomeSessionProbe {
	home, _ := os.UserHomeDir()
	return &HomeSessionProbe{
		ClaudeProjectsDir: filepath.Join(home, ".claude", "projects"),
		CodexSessionsDir:  filepath.Join(home, ".codex", "sessions"),
	}
}

// Status resolves Active/Waiting for a workspace with a live session.
func (p *HomeSessionProbe) Status(w *domain.Workspace) (domain.Status, error) {
	switch w.AgentKind {
	case domain.AgentClaude:
		return p.claudeStatus(w.Path)
	case domain.AgentCodex:
		return p.codexStatus(w.Path)
	default:
		// OpenCode and unsupported kinds have no session-file probe in
		// the original source; fall back to Active while a session is live.
		return domain.StatusActive, nil
	}
}

// claudeSanitizer mirrors Claude's own project-directory naming: the
// canonical absolute path with every non-alphanumeric run collapsed to a
// single '-'.
var claudeSanitizer = regexp.MustCompile(`[^A-Za-z0-9]+`)

func sanitizeClaudeProjectDir(absPath string) string {
	return claudeSanitizer.ReplaceAllString(absPath, "-")
}

func (p *HomeSessionProbe) claudeStatus(workspacePath string) (domain.Status, error) {
	absPath, err := filepath.Abs(workspacePath)
	if err != nil {
		return domain.StatusActive, err
	}
	dir := filepath.Join(p.ClaudeProjectsDir, sanitizeClaudeProjectDir(absPath))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return domain.StatusActive, err
	}

	var latest string
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		if strings.HasPrefix(e.Name(), "agent-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestMod) {
			latestMod = info.ModTime()
			latest = filepath.Join(dir, e.Name())
		}
	}
	if latest == "" {
		return domain.StatusActive, nil
	}
	if time.Since(latestMod) < activeFastPathWindow {
		return domain.StatusActive, nil
	}
	return lastSpeakerStatus(latest, claudeRoleOf)
}

func claudeRoleOf(line []byte) (role string, ok bool) {
	var rec struct {
		Type    string `json:"type"`
		Message struct {
			Role string `json:"role"`
		} `json:"message"`
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return "", false
	}
	if rec.Type != "user" && rec.Type != "assistant" {
		return "", false
	}
	if rec.Message.Role == "" {
		return rec.Type, true
	}
	return rec.Message.Role, true
}

func (p *HomeSessionProbe) codexStatus(workspacePath string) (domain.Status, error) {
	absPath, err := filepath.Abs(workspacePath)
	if err != nil {
		return domain.StatusActive, err
	}
	sessionPath, modTime, err := findCodexSessionFile(p.CodexSessionsDir, absPath)
	if err != nil {
		return domain.StatusActive, err
	}
	if time.Since(modTime) < activeFastPathWindow {
		return domain.StatusActive, nil
	}
	return lastSpeakerStatus(sessionPath, codexRoleOf)
}

func codexRoleOf(line []byte) (role string, ok bool) {
	var rec struct {
		Type    string `json:"type"`
		Payload struct {
			Type string `json:"type"`
			Role string `json:"role"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return "", false
	}
	if rec.Type != "response_item" || rec.Payload.Type != "message" {
		return "", false
	}
	return rec.Payload.Role, rec.Payload.Role != ""
}

// findCodexSessionFile walks the date-partitioned Codex session tree for
// the most recently modified file whose session_meta header names cwd.
func findCodexSessionFile(root, cwd string) (path string, modTime time.Time, err error) {
	type candidate struct {
		path string
		mod  time.Time
	}
	var candidates []candidate

	walkErr := filepath.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(p, ".jsonl") {
			return nil
		}
		if sessionMetaMatchesCwd(p, cwd) {
			candidates = append(candidates, candidate{path: p, mod: info.ModTime()})
		}
		return nil
	})
	if walkErr != nil {
		return "", time.Time{}, walkErr
	}
	if len(candidates) == 0 {
		return "", time.Time{}, os.ErrNotExist
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mod.After(candidates[j].mod) })
	return candidates[0].path, candidates[0].mod, nil
}

func sessionMetaMatchesCwd(path, cwd string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		var rec struct {
			Type    string `json:"type"`
			Payload struct {
				Cwd string `json:"cwd"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Type == "session_meta" {
			return rec.Payload.Cwd == cwd
		}
		// session_meta is always the first record; if we hit a non-header
		// record first, this file predates the header convention.
		return false
	}
	return false
}

// lastSpeakerStatus tails a JSONL session file for the last record whose
// role roleOf can extract, and maps it to a status. The last speaker
// decides whose turn is next: the agent (assistant) finished speaking
// means the operator's turn, i.e. Waiting; the operator (user) spoke means
// the agent is now working, i.e. Active.
func lastSpeakerStatus(path string, roleOf func([]byte) (string, bool)) (domain.Status, error) {
	lines, err := readTailLines(path, sessionTailScanBytes)
	if err != nil {
		return domain.StatusActive, err
	}
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		role, ok := roleOf([]byte(trimmed))
		if !ok {
			continue
		}
		switch role {
		case "assistant", "model":
			return domain.StatusWaiting, nil
		case "user":
			return domain.StatusActive, nil
		}
	}
	return domain.StatusActive, nil
}

// readTailLines returns the lines within the last maxBytes of a file.
func readTailLines(path string, maxBytes int64) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	start := int64(0)
	if info.Size() > maxBytes {
		start = info.Size() - maxBytes
	}
	if _, err := f.Seek(start, 0); err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, nil
}
