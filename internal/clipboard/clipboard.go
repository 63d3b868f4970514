package clipboard

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"

	extclip "github.com/atotto/clipboard"

	"github.com/jordangarrison/grove/internal/platform"
)

// CopyResult contains metadata about a successful clipboard copy operation.
type CopyResult struct {
	Method    string // How the content was copied (e.g., "pbcopy", "xclip", "osc52")
	ByteSize  int    // Number of bytes copied
	LineCount int    // Number of lines in the content
}

// Copy copies text to the system clipboard using platform-appropriate methods.
// The fallback chain is: github.com/atotto/clipboard → native clipboard
// tool → OSC 52 escape sequence (the last only when supportsOSC52 is true).
func Copy(text string, supportsOSC52 bool) (*CopyResult, error) {
	if text == "" {
		return nil, fmt.Errorf("no content to copy")
	}

	lineCount := countLines(text)
	byteSize := len(text)

	// Try the atotto/clipboard library first: it already covers
	// macOS/X11/Windows natively without shelling out.
	if err := extclip.WriteAll(text); err == nil {
		return &CopyResult{Method: "atotto/clipboard", ByteSize: byteSize, LineCount: lineCount}, nil
	}

	// Fall back to our own platform-specific command chain (Wayland,
	// WSL's clip.exe, and the Linux X11 tools atotto/clipboard doesn't
	// probe for by itself).
	method, err := copyNative(text)
	if err == nil {
		return &CopyResult{
			Method:    method,
			ByteSize:  byteSize,
			LineCount: lineCount,
		}, nil
	}

	// Fall back to OSC 52 if terminal supports it
	if supportsOSC52 {
		if err := copyOSC52(text); err != nil {
			return nil, fmt.Errorf("OSC 52 clipboard failed: %w", err)
		}
		return &CopyResult{
			Method:    "osc52",
			ByteSize:  byteSize,
			LineCount: lineCount,
		}, nil
	}

	return nil, fmt.Errorf("no clipboard method available (install pbcopy, xclip, xsel, or wl-copy)")
}

// Paste reads the system clipboard using platform-appropriate methods,
// the read-side counterpart of Copy's native fallback chain.
func Paste() (string, error) {
	if text, err := extclip.ReadAll(); err == nil {
		return text, nil
	}

	p := platform.Detect()

	switch p {
	case platform.PlatformMacOS:
		return runPasteCmd("pbpaste", nil)

	case platform.PlatformWSL1, platform.PlatformWSL2:
		return runPasteCmd("powershell.exe", []string{"-command", "Get-Clipboard"})

	case platform.PlatformLinux:
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if path, err := exec.LookPath("wl-paste"); err == nil {
				return runPasteCmd(path, nil)
			}
		}
		if path, err := exec.LookPath("xclip"); err == nil {
			return runPasteCmd(path, []string{"-selection", "clipboard", "-o"})
		}
		if path, err := exec.LookPath("xsel"); err == nil {
			return runPasteCmd(path, []string{"--clipboard", "--output"})
		}
		return "", fmt.Errorf("no clipboard command found on Linux")

	default:
		return "", fmt.Errorf("unsupported platform: %s", p)
	}
}

// runPasteCmd executes a clipboard-read command and returns its stdout.
func runPasteCmd(name string, args []string) (string, error) {
	cmd := exec.Command(name, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// copyNative attempts to copy using a platform-native clipboard command.
// Returns the method name on success.
func copyNative(text string) (string, error) {
	p := platform.Detect()

	switch p {
	case platform.PlatformMacOS:
		return "pbcopy", runClipCmd("pbcopy", nil, text)

	case platform.PlatformWSL1, platform.PlatformWSL2:
		return "clip.exe", runClipCmd("clip.exe", nil, text)

	case platform.PlatformLinux:
		// Wayland takes priority over X11
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if path, err := exec.LookPath("wl-copy"); err == nil {
				return "wl-copy", runClipCmd(path, nil, text)
			}
		}
		// X11: try xclip first, then xsel
		if path, err := exec.LookPath("xclip"); err == nil {
			return "xclip", runClipCmd(path, []string{"-selection", "clipboard"}, text)
		}
		if path, err := exec.LookPath("xsel"); err == nil {
			return "xsel", runClipCmd(path, []string{"--clipboard", "--input"}, text)
		}
		return "", fmt.Errorf("no clipboard command found on Linux")

	default:
		return "", fmt.Errorf("unsupported platform: %s", p)
	}
}

// runClipCmd executes a clipboard command, piping text to its stdin.
func runClipCmd(name string, args []string, text string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// copyOSC52 copies text using the OSC 52 terminal escape sequence.
// Inside tmux, wraps the sequence in a DCS passthrough.
func copyOSC52(text string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	seq := generateOSC52(encoded, os.Getenv("TMUX") != "")

	// Write to /dev/tty to bypass any stdout redirection
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("cannot open /dev/tty: %w", err)
	}
	defer tty.Close()

	_, err = tty.WriteString(seq)
	return err
}

// generateOSC52 builds the OSC 52 escape sequence.
// If inTmux is true, wraps it in a DCS passthrough for tmux compatibility.
func generateOSC52(base64Content string, inTmux bool) string {
	osc := "\x1b]52;c;" + base64Content + "\x07"
	if inTmux {
		// tmux DCS passthrough: \ePtmux;\e{OSC}\e\\
		return "\x1bPtmux;\x1b" + osc + "\x1b\\"
	}
	return osc
}

// countLines counts the number of lines in text, empty lines included.
// A trailing newline does not add an extra line.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	// If text doesn't end with newline, the last line still counts
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
