// Command grove is Grove's CLI entrypoint: a `worktree` subcommand family
// for creating/listing/removing managed workspaces, a headless `list`
// command that reconciles and prints the current workspace table, and a
// `tui` command that runs the interactive Bubble Tea program
// (internal/ui) over the core event loop. `list` remains the default since
// scripts and non-TTY callers should never be dropped into the TUI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jordangarrison/grove/internal/adapter"
	"github.com/jordangarrison/grove/internal/config"
	"github.com/jordangarrison/grove/internal/core"
	"github.com/jordangarrison/grove/internal/domain"
	"github.com/jordangarrison/grove/internal/git"
	"github.com/jordangarrison/grove/internal/interactive"
	"github.com/jordangarrison/grove/internal/platform"
	"github.com/jordangarrison/grove/internal/reconcile"
	"github.com/jordangarrison/grove/internal/schedule"
	"github.com/jordangarrison/grove/internal/ui"
)

func main() {
	if len(os.Args) < 2 {
		runList(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "worktree", "wt":
		dispatchWorktree(os.Args[2:])
	case "list", "ls":
		runList(os.Args[2:])
	case "tui":
		runTUI()
	case "help", "-h", "--help":
		printUsage()
	default:
		runList(os.Args[1:])
	}
}

func printUsage() {
	fmt.Println("Usage: grove [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  list               List reconciled workspaces (default)")
	fmt.Println("  worktree create    Create a new Grove-managed workspace")
	fmt.Println("  worktree list      List worktrees with their Grove status")
	fmt.Println("  worktree remove    Remove a Grove-managed workspace")
	fmt.Println("  tui                Launch the interactive workspace view")
}

// runTUI reconciles the current project's workspaces and hands them to the
// Bubble Tea program, driving the core event loop alongside it until the
// program exits.
func runTUI() {
	repoRoot, projectName := repoContext()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: load config: %v\n", err)
		os.Exit(1)
	}

	a := adapter.New()
	sessions, err := a.ListSessions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: list sessions: %v\n", err)
		os.Exit(1)
	}
	live := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		live[s] = struct{}{}
	}
	result, err := reconcile.Reconcile(repoRoot, projectName, live, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: reconcile: %v\n", err)
		os.Exit(1)
	}

	generations := domain.NewGenerations()
	sched := schedule.New(a, generations)
	for _, ws := range result.Workspaces {
		if ws.Status.HasSession() {
			sched.Track(ws.SessionName(), schedule.PollContext{Status: ws.Status})
		}
	}
	controller := interactive.New(a, generations)

	startUnix := time.Now().Unix()
	debugLog, err := core.OpenDebugLog(repoRoot, startUnix, os.Getpid())
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: open debug log: %v\n", err)
		os.Exit(1)
	}
	defer debugLog.Close()

	loop := core.NewLoop(sched, controller, generations, debugLog, a)
	go loop.Run(ctx)

	model := ui.NewModel(loop, controller, result.Workspaces, cfg)
	if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		model.SetInitialSize(cols, rows)
	}

	program := tea.NewProgram(model, tea.WithAltScreen())
	if reason := platform.CheckFsnotifySupport(repoRoot); reason != "" {
		fmt.Fprintln(os.Stderr, "grove: "+reason)
	} else if watcher, err := reconcile.NewMarkerWatcher(repoRoot); err == nil {
		go watcher.Run(ctx)
		go forwardWorkspaceRefreshes(ctx, watcher, program, repoRoot, projectName, a)
		defer watcher.Close()
	}

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "grove: %v\n", err)
		os.Exit(1)
	}
}

// forwardWorkspaceRefreshes re-reconciles on every debounced marker-file
// change and feeds the result into the running program.
func forwardWorkspaceRefreshes(ctx context.Context, watcher *reconcile.MarkerWatcher, program *tea.Program, repoRoot, projectName string, a *adapter.Adapter) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.Changes():
			sessions, err := a.ListSessions(ctx)
			if err != nil {
				continue
			}
			live := make(map[string]struct{}, len(sessions))
			for _, s := range sessions {
				live[s] = struct{}{}
			}
			result, err := reconcile.Reconcile(repoRoot, projectName, live, nil)
			if err != nil {
				continue
			}
			program.Send(ui.WorkspacesUpdatedMsg{Workspaces: result.Workspaces})
		}
	}
}

func dispatchWorktree(args []string) {
	if len(args) == 0 {
		printWorktreeUsage()
		return
	}
	switch args[0] {
	case "create":
		runWorktreeCreate(args[1:])
	case "list", "ls":
		runList(args[1:])
	case "remove", "rm":
		runWorktreeRemove(args[1:])
	case "help", "-h", "--help":
		printWorktreeUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown worktree command: %s\n", args[0])
		printWorktreeUsage()
		os.Exit(1)
	}
}

func printWorktreeUsage() {
	fmt.Println("Usage: grove worktree <command> [options]")
	fmt.Println()
	fmt.Println("  create --branch <name> --agent <claude|codex|opencode> [--base <branch>]")
	fmt.Println("  list")
	fmt.Println("  remove <workspace-name>")
}

func repoContext() (repoRoot string, projectName string) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: %v\n", err)
		os.Exit(1)
	}
	if !git.IsGitRepo(cwd) {
		fmt.Fprintln(os.Stderr, "grove: not in a git repository")
		os.Exit(1)
	}
	root, err := git.GetWorktreeBaseRoot(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: %v\n", err)
		os.Exit(1)
	}
	return root, filepathBase(root)
}

func filepathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func runList(args []string) {
	fs := flag.NewFlagSet("grove list", flag.ExitOnError)
	filter := fs.String("filter", "", "fuzzy-filter workspaces by name or branch")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	repoRoot, projectName := repoContext()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := adapter.New()
	sessions, err := a.ListSessions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: list sessions: %v\n", err)
		os.Exit(1)
	}
	live := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		live[s] = struct{}{}
	}

	result, err := reconcile.Reconcile(repoRoot, projectName, live, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: reconcile: %v\n", err)
		os.Exit(1)
	}
	result.Workspaces = reconcile.FilterWorkspaces(result.Workspaces, *filter)

	printWorkspaceTable(result)
}

func printWorkspaceTable(result reconcile.Result) {
	for _, ws := range result.Workspaces {
		marker := " "
		if ws.IsOrphaned {
			marker = "*"
		}
		fmt.Printf("%-24s %-10s %-8s %s%s\n", ws.Name, ws.Status.String(), agentLabel(ws.AgentKind), ws.Branch, marker)
	}
	if len(result.OrphanedSessions) > 0 {
		fmt.Println()
		fmt.Println("orphaned sessions (no matching worktree):")
		for _, s := range result.OrphanedSessions {
			fmt.Println("  " + s)
		}
	}
	if len(result.MissingCwd) > 0 {
		fmt.Println()
		fmt.Println("missing worktree directories (branch still exists, needs manual prune):")
		for _, p := range result.MissingCwd {
			fmt.Println("  " + p)
		}
	}
}

func agentLabel(kind domain.AgentKind) string {
	if m := kind.Marker(); m != "" {
		return m
	}
	return "-"
}

func runWorktreeCreate(args []string) {
	fs := flag.NewFlagSet("grove worktree create", flag.ExitOnError)
	branch := fs.String("branch", "", "branch name for the new workspace")
	agentName := fs.String("agent", "claude", "agent kind: claude, codex, or opencode")
	base := fs.String("base", "", "base branch (defaults to the repo's default branch)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *branch == "" {
		fmt.Fprintln(os.Stderr, "grove: --branch is required")
		os.Exit(1)
	}

	kind, ok := domain.AgentKindFromMarker(*agentName)
	if !ok {
		fmt.Fprintf(os.Stderr, "grove: unsupported agent %q\n", *agentName)
		os.Exit(1)
	}

	repoRoot, _ := repoContext()

	baseBranch := *base
	if baseBranch == "" {
		b, err := git.GetDefaultBranch(repoRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "grove: resolve default branch: %v\n", err)
			os.Exit(1)
		}
		baseBranch = b
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: load config: %v\n", err)
		os.Exit(1)
	}
	worktreePath := git.GenerateWorktreePath(repoRoot, *branch, cfg.Worktree.DefaultLocation)
	if err := git.CreateWorktree(repoRoot, worktreePath, *branch); err != nil {
		fmt.Fprintf(os.Stderr, "grove: create worktree: %v\n", err)
		os.Exit(1)
	}

	if err := reconcile.CreateWorkspaceMarkers(worktreePath, kind.Marker(), baseBranch); err != nil {
		fmt.Fprintf(os.Stderr, "grove: write markers: %v\n", err)
		os.Exit(1)
	}
	if err := reconcile.CopyEnvFiles(repoRoot, worktreePath); err != nil {
		fmt.Fprintf(os.Stderr, "grove: copy env files: %v\n", err)
		os.Exit(1)
	}
	if err := reconcile.AppendGitignore(repoRoot); err != nil {
		fmt.Fprintf(os.Stderr, "grove: update .gitignore: %v\n", err)
		os.Exit(1)
	}
	if err := reconcile.RunSetupScript(repoRoot, repoRoot, *branch, worktreePath); err != nil {
		fmt.Fprintf(os.Stderr, "grove: setup script: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created workspace %s (%s) at %s\n", *branch, *agentName, worktreePath)
}

func runWorktreeRemove(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "grove: usage: grove worktree remove <workspace-name>")
		os.Exit(1)
	}
	name := args[0]

	repoRoot, projectName := repoContext()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := adapter.New()
	sessions, err := a.ListSessions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: list sessions: %v\n", err)
		os.Exit(1)
	}
	live := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		live[s] = struct{}{}
	}

	result, err := reconcile.Reconcile(repoRoot, projectName, live, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grove: reconcile: %v\n", err)
		os.Exit(1)
	}

	var target *domain.Workspace
	for i := range result.Workspaces {
		if result.Workspaces[i].Name == name {
			target = &result.Workspaces[i]
			break
		}
	}
	if target == nil {
		fmt.Fprintf(os.Stderr, "grove: no workspace named %q\n", name)
		os.Exit(1)
	}
	if target.IsMain {
		fmt.Fprintln(os.Stderr, "grove: refusing to remove the main worktree")
		os.Exit(1)
	}

	sessionName := target.SessionName()
	if _, live := live[sessionName]; live {
		if err := a.KillSession(ctx, sessionName); err != nil {
			fmt.Fprintf(os.Stderr, "grove: kill session: %v\n", err)
		}
	}
	if err := git.RemoveWorktree(repoRoot, target.Path, false); err != nil {
		fmt.Fprintf(os.Stderr, "grove: remove worktree: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("removed workspace %s\n", name)
}
