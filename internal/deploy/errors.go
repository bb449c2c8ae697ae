package deploy

import (
	"errors"
	"fmt"

	"vilehvh/internal/progress"
)

// ErrNoUsername is returned when Deploy has no account to log in with.
var ErrNoUsername = errors.New("steam username not set")

// ToolFailure reports a non-zero SteamCMD exit.
type ToolFailure struct {
	ExitCode int
	Phase    progress.Phase
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("steamcmd exited with code %d during %s", e.ExitCode, e.Phase)
}

// IncompleteInstall reports that SteamCMD ended without the success marker.
type IncompleteInstall struct {
	LastPhase progress.Phase
	Reason    string
}

func (e *IncompleteInstall) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("install incomplete (last phase %s): %s", e.LastPhase, e.Reason)
	}
	return fmt.Sprintf("install incomplete (last phase %s)", e.LastPhase)
}
