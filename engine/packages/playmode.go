package packages

import (
	"fmt"
	"strings"
)

// PlayMode selects the resolution strategy of a package. Immutable after
// initialization.
type PlayMode uint8

const (
	// Assets are scanned straight from the project's asset directory. Editor
	// workflows only.
	PlayModeSimulate PlayMode = iota
	// Every asset ships in the read-only buildin directory.
	PlayModeOffline
	// Assets resolve locally first, then from the remote host into the
	// read-write sandbox.
	PlayModeHostOnline
	// Host-online behavior for web targets. Forced unload is unavailable.
	PlayModeWebOnline
)

func (m PlayMode) String() string {
	switch m {
	case PlayModeSimulate:
		return "simulate"
	case PlayModeOffline:
		return "offline"
	case PlayModeHostOnline:
		return "host-online"
	case PlayModeWebOnline:
		return "web-online"
	default:
		return "unknown"
	}
}

func ParsePlayMode(s string) (PlayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simulate", "editor-simulate", "":
		return PlayModeSimulate, nil
	case "offline":
		return PlayModeOffline, nil
	case "host-online", "hostonline":
		return PlayModeHostOnline, nil
	case "web-online", "webonline":
		return PlayModeWebOnline, nil
	default:
		return PlayModeSimulate, fmt.Errorf("unknown play mode '%s'", s)
	}
}

func (m PlayMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PlayMode) UnmarshalText(text []byte) error {
	mode, err := ParsePlayMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// IsOnline reports whether the mode may fetch files from a remote host.
func (m PlayMode) IsOnline() bool {
	return m == PlayModeHostOnline || m == PlayModeWebOnline
}

// VerifyLevel controls how hard cached downloads are checked before use.
type VerifyLevel uint8

const (
	// File size only.
	VerifyLevelLow VerifyLevel = iota
	// Size plus content hash when a file first lands in the sandbox.
	VerifyLevelMiddle
	// Size plus content hash on every open.
	VerifyLevelHigh
)

func (v VerifyLevel) String() string {
	switch v {
	case VerifyLevelLow:
		return "low"
	case VerifyLevelMiddle:
		return "middle"
	case VerifyLevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

func ParseVerifyLevel(s string) (VerifyLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return VerifyLevelLow, nil
	case "middle", "":
		return VerifyLevelMiddle, nil
	case "high":
		return VerifyLevelHigh, nil
	default:
		return VerifyLevelMiddle, fmt.Errorf("unknown verify level '%s'", s)
	}
}

func (v VerifyLevel) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *VerifyLevel) UnmarshalText(text []byte) error {
	level, err := ParseVerifyLevel(string(text))
	if err != nil {
		return err
	}
	*v = level
	return nil
}

// InitParameters carries everything a package needs for its play mode. The
// resource module builds these from its configuration surface.
type InitParameters struct {
	PlayMode PlayMode

	// Simulate mode.
	SimulateAssetDir string

	// Read-only storage root; the package name is appended.
	BuildinRoot string
	// Read-write storage root; the package name is appended.
	SandboxRoot string

	Decryption   DecryptionServices
	BuildinQuery BuildinQueryServices
	Remote       RemoteServices

	VerifyLevel            VerifyLevel
	MaxConcurrentDownloads int
	FailedTryAgain         int
}
