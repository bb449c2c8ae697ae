// Package deploy owns the server install target and runs SteamCMD update
// jobs against it.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"vilehvh/internal/paths"
	"vilehvh/internal/progress"
	"vilehvh/internal/runner"
	"vilehvh/internal/session"
)

// bundledLibraries ship with the server but break it on modern distros.
var bundledLibraries = []string{"libgcc_s.so.1", "libstdc++.so.6"}

// Driver is the only component that opens SteamCMD sessions, so every
// session it hands to the Authenticator already has the install dir applied.
type Driver struct {
	Launcher runner.Launcher
	SteamCMD string
	Auth     *session.Authenticator
	Reporter progress.Reporter
	Logger   zerolog.Logger
	// Echo shows raw SteamCMD output during interactive logins.
	Echo io.Writer
	GOOS string
	// Username is used for the cached login inside Deploy. Authenticate sets
	// it on success.
	Username string

	target *paths.InstallTarget
}

// New returns a driver for the given SteamCMD binary.
func New(launcher runner.Launcher, steamcmd string, auth *session.Authenticator, logger zerolog.Logger) *Driver {
	return &Driver{Launcher: launcher, SteamCMD: steamcmd, Auth: auth, Logger: logger}
}

// SetInstallTarget creates the install root and makes it the directory every
// later session is forced into.
func (d *Driver) SetInstallTarget(path string) error {
	target, err := paths.NewInstallTarget(path)
	if err != nil {
		return err
	}
	if err := target.EnsureRoot(); err != nil {
		return err
	}
	d.target = &target
	d.Logger.Info().Str("install_dir", target.Root).Msg("install target set")
	return nil
}

// Target returns the install target, if set.
func (d *Driver) Target() (paths.InstallTarget, bool) {
	if d.target == nil {
		return paths.InstallTarget{}, false
	}
	return *d.target, true
}

func (d *Driver) open(ctx context.Context, echo bool) (*session.Session, error) {
	if d.target == nil {
		return nil, session.ErrInstallDirNotSet
	}
	b := session.NewBuilder(d.Launcher, d.SteamCMD).
		InstallDir(d.target.Root).
		Logger(d.Logger.With().Str("component", "steamcmd").Logger())
	if echo && d.Echo != nil {
		b = b.Echo(d.Echo)
	}
	return b.Open(ctx)
}

func (d *Driver) authenticator() *session.Authenticator {
	if d.Auth == nil {
		d.Auth = &session.Authenticator{Logger: d.Logger}
	}
	return d.Auth
}

// Authenticate logs in inside a session opened with the install dir. A first
// login runs until the operator quits SteamCMD; a cached login is closed
// right away.
func (d *Driver) Authenticate(ctx context.Context, creds session.Credentials) (session.Result, error) {
	sess, err := d.open(ctx, creds.FirstLogin)
	if err != nil {
		return session.Result{}, err
	}
	res, err := d.authenticator().Login(ctx, sess, creds)
	if err != nil {
		_ = sess.Abort()
		return res, err
	}
	if creds.FirstLogin {
		_, _ = sess.Wait()
	} else if _, cerr := sess.Close(); cerr != nil {
		d.Logger.Debug().Err(cerr).Msg("steamcmd exit after login")
	}
	d.Username = creds.Username
	return res, nil
}

// Deploy installs or updates appID. The returned task always reflects the
// last observed phase, including on failure.
func (d *Driver) Deploy(ctx context.Context, appID string, validate bool) (*progress.Task, error) {
	task := progress.NewTask("server", appID, validate)
	d.report(task)
	if d.Username == "" {
		return task, ErrNoUsername
	}

	log := d.Logger.With().Str("app_id", appID).Bool("validate", validate).Logger()
	sess, err := d.open(ctx, false)
	if err != nil {
		return task, err
	}
	if _, err := d.authenticator().Login(ctx, sess, session.Credentials{Username: d.Username}); err != nil {
		_ = sess.Abort()
		return task, err
	}

	cmd := "app_update " + appID
	if validate {
		cmd += " validate"
	}
	log.Info().Msg("starting app_update")
	if err := sess.Send(cmd); err != nil {
		_ = sess.Abort()
		return task, err
	}

	var (
		succeeded bool
		failure   string
	)
	for !succeeded && failure == "" {
		line, err := sess.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = sess.Abort()
			return task, err
		}
		if update, ok := ParseProgress(line); ok {
			task.Apply(update)
			d.report(task)
			log.Debug().Str("phase", string(task.Phase)).Float64("percent", task.Percent).Msg("progress")
			continue
		}
		if isSuccess(line, appID) {
			succeeded = true
			continue
		}
		if msg, ok := failureLine(line); ok {
			failure = msg
		}
	}

	var code int
	if succeeded || failure != "" {
		code, _ = sess.Close()
	} else {
		code, _ = sess.Wait()
	}

	switch {
	case code != 0:
		log.Error().Int("exit_code", code).Str("phase", string(task.Phase)).Msg("steamcmd failed")
		return task, &ToolFailure{ExitCode: code, Phase: task.Phase}
	case failure != "":
		last := task.Phase
		task.Fail(failure)
		d.report(task)
		log.Error().Str("reason", failure).Msg("app_update failed")
		return task, &IncompleteInstall{LastPhase: last, Reason: failure}
	case !succeeded:
		log.Error().Str("phase", string(task.Phase)).Msg("steamcmd ended without success marker")
		return task, &IncompleteInstall{LastPhase: task.Phase}
	}

	task.Complete()
	d.report(task)
	log.Info().Msg("app fully installed")
	return task, nil
}

func (d *Driver) report(task *progress.Task) {
	if d.Reporter != nil {
		d.Reporter.Report(*task)
	}
}

func (d *Driver) goos() string {
	if d.GOOS == "" {
		return runtime.GOOS
	}
	return d.GOOS
}

// IsInstalled reports whether the server launcher exists under the target.
func (d *Driver) IsInstalled() bool {
	if d.target == nil {
		return false
	}
	name := "srcds_run"
	if d.goos() == "windows" {
		name = "srcds.exe"
	}
	ok, _ := paths.FileExists(filepath.Join(d.target.Root, name))
	return ok
}

// FixBundledLibraries moves the server's bundled libgcc/libstdc++ aside so
// the system copies are used. It returns the files renamed; running it again
// is a no-op.
func (d *Driver) FixBundledLibraries() ([]string, error) {
	if d.target == nil {
		return nil, session.ErrInstallDirNotSet
	}
	if d.goos() != "linux" {
		return nil, nil
	}
	var renamed []string
	for _, lib := range bundledLibraries {
		src := filepath.Join(d.target.BinDir, lib)
		ok, err := paths.FileExists(src)
		if err != nil {
			return renamed, err
		}
		if !ok {
			continue
		}
		if err := os.Rename(src, src+".bak"); err != nil {
			return renamed, fmt.Errorf("rename %s: %w", lib, err)
		}
		renamed = append(renamed, lib)
	}
	if len(renamed) > 0 {
		d.Logger.Info().Str("libs", strings.Join(renamed, ",")).Msg("bundled libraries moved aside")
	}
	return renamed, nil
}
