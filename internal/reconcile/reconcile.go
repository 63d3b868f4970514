// Package reconcile implements Grove's Reconciler: it joins git-worktree
// inventory, filesystem markers, and live multiplexer session listings
// into a classified workspace list (spec §4.3).
package reconcile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jordangarrison/grove/internal/domain"
	"github.com/jordangarrison/grove/internal/git"
	"github.com/jordangarrison/grove/internal/logging"
)

var reconcileLog = logging.ForComponent(logging.CompReconcile)

const (
	AgentMarkerFile = ".grove-agent"
	BaseMarkerFile  = ".grove-base"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	Workspaces []domain.Workspace
	// OrphanedSessions are live sessions matching Grove's naming prefix
	// with no corresponding worktree directory (cleanup candidates, not
	// shown in the main list).
	OrphanedSessions []string
	// Pruned lists worktrees whose directory and branch are both gone.
	Pruned []string
	// MissingCwd lists worktrees whose directory is gone but whose branch
	// still exists, flagged for manual prune rather than auto-removed.
	MissingCwd []string
}

// SessionProbe resolves Active/Waiting for a workspace with a live session,
// independently of pane output (spec §4.3 Agent session-file probes).
type SessionProbe interface {
	Status(w *domain.Workspace) (domain.Status, error)
}

// Reconcile builds the classified workspace list for one project root.
// liveSessions is the full live-session-name set from the Session Adapter's
// ListSessions, projectName scopes the deterministic session-name prefix.
func Reconcile(repoRoot, projectName string, liveSessions map[string]struct{}, probe SessionProbe) (Result, error) {
	worktrees, err := git.ListWorktrees(repoRoot)
	if err != nil {
		reconcileLog.Error("list worktrees failed", "repo_root", repoRoot, "err", err)
		return Result{}, err
	}

	var result Result
	matchedSessions := make(map[string]struct{})

	for _, wt := range worktrees {
		if _, err := os.Stat(wt.Path); err != nil {
			if os.IsNotExist(err) {
				classifyMissingCwd(&result, wt, repoRoot)
				continue
			}
		}

		ws := domain.Workspace{
			Name:        filepath.Base(wt.Path),
			Path:        wt.Path,
			Branch:      wt.Branch,
			IsMain:      !wt.Bare && isMainWorktree(repoRoot, wt.Path),
			ProjectName: projectName,
		}

		if ws.IsMain {
			ws.Status = domain.StatusMain
			result.Workspaces = append(result.Workspaces, ws)
			continue
		}

		agentMarker, agentErr := readMarker(filepath.Join(wt.Path, AgentMarkerFile))
		if agentErr != nil {
			// Absence of an agent marker means "not Grove-managed"; skip it
			// entirely rather than surfacing a bare git worktree.
			continue
		}
		baseBranch, _ := readMarker(filepath.Join(wt.Path, BaseMarkerFile))
		ws.BaseBranch = baseBranch

		kind, ok := domain.AgentKindFromMarker(agentMarker)
		ws.AgentKind = kind
		ws.SupportedAgent = ok
		if !ok {
			ws.Status = domain.StatusUnsupported
			result.Workspaces = append(result.Workspaces, ws)
			continue
		}

		sessionName := ws.SessionName()
		_, hasLiveSession := liveSessions[sessionName]

		if hasLiveSession {
			matchedSessions[sessionName] = struct{}{}
			ws.IsOrphaned = false
			if probe != nil {
				if status, err := probe.Status(&ws); err == nil {
					ws.Status = status
				} else {
					ws.Status = domain.StatusActive
					ws.LastError = err
				}
			} else {
				ws.Status = domain.StatusActive
			}
		} else {
			ws.Status = domain.StatusIdle
			ws.IsOrphaned = true
		}

		result.Workspaces = append(result.Workspaces, ws)
	}

	for sessionName := range liveSessions {
		if !strings.HasPrefix(sessionName, "grove-ws-") {
			continue
		}
		if _, ok := matchedSessions[sessionName]; !ok {
			result.OrphanedSessions = append(result.OrphanedSessions, sessionName)
		}
	}
	sort.Strings(result.OrphanedSessions)

	sortWorkspaces(result.Workspaces)
	reconcileLog.Debug("reconcile pass complete",
		"repo_root", repoRoot,
		"workspaces", len(result.Workspaces),
		"orphaned_sessions", len(result.OrphanedSessions),
		"pruned", len(result.Pruned),
		"missing_cwd", len(result.MissingCwd),
	)
	return result, nil
}

// sortWorkspaces pins the main workspace first, then orders the rest by
// last-activity (descending) then name (spec §8 scenario 1).
func sortWorkspaces(ws []domain.Workspace) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].IsMain != ws[j].IsMain {
			return ws[i].IsMain
		}
		if ws[i].LastActivityUnix != ws[j].LastActivityUnix {
			return ws[i].LastActivityUnix > ws[j].LastActivityUnix
		}
		return ws[i].Name < ws[j].Name
	})
}

func classifyMissingCwd(result *Result, wt git.Worktree, repoRoot string) {
	if git.BranchExists(repoRoot, wt.Branch) {
		result.MissingCwd = append(result.MissingCwd, wt.Path)
		return
	}
	result.Pruned = append(result.Pruned, wt.Path)
}

func isMainWorktree(repoRoot, worktreePath string) bool {
	main, err := git.GetMainWorktreePath(repoRoot)
	if err != nil {
		return false
	}
	absMain, _ := filepath.Abs(main)
	absWT, _ := filepath.Abs(worktreePath)
	return absMain == absWT
}

func readMarker(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0]), nil
}

// WriteMarker writes a single-line marker file, used both for
// .grove-agent/.grove-base creation and round-trip tests (spec §8
// round-trip law).
func WriteMarker(path, value string) error {
	return os.WriteFile(path, []byte(value+"\n"), 0o644)
}
