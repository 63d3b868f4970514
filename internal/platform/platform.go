// Package platform detects the host OS/environment so the clipboard and
// filesystem-watch layers can pick working strategies without the caller
// needing to know about WSL quirks or network mounts.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform is the detected host environment.
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detected      Platform
	detectionDone bool
)

// Detect returns the current platform, caching the result.
func Detect() Platform {
	if detectionDone {
		return detected
	}
	detected = detectPlatform()
	detectionDone = true
	return detected
}

func detectPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		return detectLinuxOrWSL()
	default:
		return PlatformUnknown
	}
}

func detectLinuxOrWSL() Platform {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return detectWSLVersion()
	}
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		return PlatformLinux
	}
	versionStr := string(procVersion)
	if strings.Contains(strings.ToLower(versionStr), "microsoft") {
		return detectWSLVersion()
	}
	return PlatformLinux
}

func detectWSLVersion() Platform {
	procVersion, err := os.ReadFile("/proc/version")
	if err == nil {
		versionStr := string(procVersion)
		if strings.Contains(versionStr, "microsoft-standard") {
			return PlatformWSL2
		}
		if strings.Contains(versionStr, "Microsoft") {
			return PlatformWSL1
		}
	}
	if _, err := os.Stat("/run/WSL"); err == nil {
		return PlatformWSL2
	}
	if _, err := os.Stat("/dev/vsock"); err == nil {
		return PlatformWSL2
	}
	return PlatformWSL1
}

// IsWSL reports whether the host is any WSL generation.
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// CheckFsnotifySupport warns when path sits on a filesystem where fsnotify
// events are unreliable or disabled (9p, NFS, CIFS, SSHFS), so the
// Reconciler's marker-file watch can fall back to manual refresh messaging.
// Returns "" when the filesystem is not known to be problematic.
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}

	var matchedMount, matchedFsType string
	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if strings.HasPrefix(absPath, mountPoint) && len(mountPoint) > len(matchedMount) {
			matchedMount, matchedFsType = mountPoint, fsType
		}
	}

	switch matchedFsType {
	case "9p":
		return "workspace root is on a 9p mount (WSL2 Windows filesystem): marker-file watch disabled, use manual refresh"
	case "nfs", "nfs4":
		return "workspace root is on an NFS mount: marker-file watch may be unreliable, use manual refresh"
	case "cifs", "smbfs":
		return "workspace root is on a CIFS/SMB mount: marker-file watch may be unreliable, use manual refresh"
	}
	if strings.HasPrefix(matchedFsType, "fuse.sshfs") {
		return "workspace root is on an SSHFS mount: marker-file watch disabled, use manual refresh"
	}
	return ""
}
