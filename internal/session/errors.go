package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCachedCredentials means a cached login needs the first-time flow.
	ErrNoCachedCredentials = errors.New("no cached steam credentials")
	// ErrSessionClosed means SteamCMD exited before authentication finished.
	ErrSessionClosed = errors.New("steamcmd session closed unexpectedly")
	// ErrInstallDirNotSet guards the install-dir-before-login ordering.
	ErrInstallDirNotSet = errors.New("install directory must be set before login")
	// ErrInvalidTransition reports a state change the machine forbids.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// LoginError reports that Steam rejected the login.
type LoginError struct {
	Username string
	Reason   string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("steam login for %q rejected: %s", e.Username, e.Reason)
}
