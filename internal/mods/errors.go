package mods

import (
	"errors"
	"fmt"
)

// Failure kinds, so callers can tell network trouble from bad archives and
// layout mismatches.
var (
	ErrDownloadFailed      = errors.New("download failed")
	ErrExtractFailed       = errors.New("extract failed")
	ErrVerificationFailed  = errors.New("verification failed")
	ErrMissingPrerequisite = errors.New("missing prerequisite")
)

// InstallError wraps a failure of one mod install. errors.Is matches its Kind.
type InstallError struct {
	Mod  string
	Kind error
	Err  error
}

func (e *InstallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("install %s: %v", e.Mod, e.Kind)
	}
	return fmt.Sprintf("install %s: %v: %v", e.Mod, e.Kind, e.Err)
}

func (e *InstallError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
