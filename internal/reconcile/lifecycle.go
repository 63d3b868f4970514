package reconcile

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SetupScript is the optional project-root hook run once on workspace
// creation.
const SetupScript = ".grove-setup.sh"

// StartScript is the per-workspace launcher for prompted launches; it
// self-deletes after running.
const StartScript = ".grove-start.sh"

// envFilesToCopy lists the dotenv-style files copied from the main
// worktree into a new workspace root when present (spec §6 supplement,
// ENV_FILES_TO_COPY in the original).
var envFilesToCopy = []string{
	".env",
	".env.local",
	".env.development",
	".env.development.local",
}

// gitignoreEntries are appended idempotently to the project's ignore file
// on workspace creation.
var gitignoreEntries = []string{
	AgentMarkerFile,
	BaseMarkerFile,
	StartScript,
	SetupScript,
}

// CreateWorkspaceMarkers writes the .grove-agent/.grove-base marker pair at
// a freshly created workspace root.
func CreateWorkspaceMarkers(workspacePath, agentMarker, baseBranch string) error {
	if err := WriteMarker(filepath.Join(workspacePath, AgentMarkerFile), agentMarker); err != nil {
		return fmt.Errorf("write agent marker: %w", err)
	}
	if err := WriteMarker(filepath.Join(workspacePath, BaseMarkerFile), baseBranch); err != nil {
		return fmt.Errorf("write base marker: %w", err)
	}
	return nil
}

// CopyEnvFiles copies any present dotenv-style file from the main worktree
// into the new workspace root. Missing source files are silently skipped;
// this is a convenience for local dev secrets, not a required invariant.
func CopyEnvFiles(mainWorktreePath, workspacePath string) error {
	for _, name := range envFilesToCopy {
		src := filepath.Join(mainWorktreePath, name)
		data, err := os.ReadFile(src)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		dst := filepath.Join(workspacePath, name)
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// AppendGitignore idempotently appends Grove's marker/script filenames to
// the project's ignore file, preserving existing order and contents.
func AppendGitignore(projectRoot string) error {
	path := filepath.Join(projectRoot, ".gitignore")
	existing := make(map[string]struct{})

	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			existing[strings.TrimSpace(scanner.Text())] = struct{}{}
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read .gitignore: %w", err)
	}

	var toAdd []string
	for _, entry := range gitignoreEntries {
		if _, ok := existing[entry]; !ok {
			toAdd = append(toAdd, entry)
		}
	}
	if len(toAdd) == 0 {
		return nil
	}

	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open .gitignore: %w", err)
	}
	defer out.Close()

	for _, entry := range toAdd {
		if _, err := fmt.Fprintln(out, entry); err != nil {
			return err
		}
	}
	return nil
}

// RunSetupScript executes the optional project-root setup hook once, with
// the worktree context exposed as environment variables. A missing script
// is not an error.
func RunSetupScript(projectRoot, mainWorktreePath, worktreeBranch, worktreePath string) error {
	scriptPath := filepath.Join(projectRoot, SetupScript)
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		return nil
	}

	cmd := exec.Command(scriptPath)
	cmd.Dir = worktreePath
	cmd.Env = append(os.Environ(),
		"MAIN_WORKTREE="+mainWorktreePath,
		"WORKTREE_BRANCH="+worktreeBranch,
		"WORKTREE_PATH="+worktreePath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("setup script failed: %w: %s", err, string(out))
	}
	return nil
}

// WriteStartScript writes a self-deleting launcher script inside the
// workspace for a prompted agent launch.
func WriteStartScript(workspacePath, agentCommand, prompt string) (string, error) {
	scriptPath := filepath.Join(workspacePath, StartScript)
	var body strings.Builder
	body.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&body, "rm -f %q\n", scriptPath)
	fmt.Fprintf(&body, "exec %s %q\n", agentCommand, prompt)

	if err := os.WriteFile(scriptPath, []byte(body.String()), 0o755); err != nil {
		return "", fmt.Errorf("write start script: %w", err)
	}
	return scriptPath, nil
}
