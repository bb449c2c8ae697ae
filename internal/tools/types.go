package tools

import "fmt"

// ToolName is the managed installer binary.
const ToolName = "steamcmd"

// StrategyName identifies a provisioning strategy.
type StrategyName string

const (
	StrategyAUR        StrategyName = "aur"
	StrategyApt        StrategyName = "apt"
	StrategyWindowsZip StrategyName = "windows-zip"
	StrategyTarball    StrategyName = "tarball"
	// StrategyExisting marks a binary that was already present.
	StrategyExisting StrategyName = "existing"
)

type Source string

const (
	SourceUnknown  Source = ""
	SourceManifest Source = "manifest"
	SourceSystem   Source = "system"
	SourceUserDir  Source = "user-dir"
)

// Location is a verified SteamCMD install.
type Location struct {
	Path        string       `json:"path"`
	Dir         string       `json:"dir"`
	Strategy    StrategyName `json:"strategy"`
	Source      Source       `json:"source,omitempty"`
	Checksum    string       `json:"checksum,omitempty"`
	InstalledAt string       `json:"installed_at,omitempty"`
}

// Status captures the resolved state for doctor and status output.
type Status struct {
	Tool        string       `json:"tool"`
	Present     bool         `json:"present"`
	Path        string       `json:"path,omitempty"`
	Source      Source       `json:"source,omitempty"`
	Strategy    StrategyName `json:"strategy,omitempty"`
	InstalledAt string       `json:"installed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	Hints       []string     `json:"hints,omitempty"`
}

// ManifestEntry records a resolved tool in the manifest.
type ManifestEntry struct {
	Tool     string   `json:"tool"`
	Location Location `json:"location"`
}

// Manifest wraps persisted entries for quick lookup.
type Manifest struct {
	Entries map[string]ManifestEntry `json:"entries"`
}

// ProvisionError reports a failed strategy or post-install verification.
type ProvisionError struct {
	Strategy StrategyName
	ExitCode int
	Err      error
}

func (e *ProvisionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("provision steamcmd via %s: exit code %d: %v", e.Strategy, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("provision steamcmd via %s: %v", e.Strategy, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }
