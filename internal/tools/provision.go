// Package tools provisions SteamCMD, the installer every later phase drives.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"vilehvh/internal/archive"
	"vilehvh/internal/config"
	"vilehvh/internal/paths"
	"vilehvh/internal/runner"
	"vilehvh/internal/system"
)

// DefaultSystemPaths are where distribution packages place the binary.
var DefaultSystemPaths = []string{"/usr/games/steamcmd", "/usr/bin/steamcmd"}

// Provisioner installs and locates SteamCMD. Zero-valued fields fall back to
// the real host.
type Provisioner struct {
	Runner runner.Runner
	Logger zerolog.Logger
	Config config.SteamCMDConfig
	GOOS   string

	// Dir is where archive strategies unpack SteamCMD.
	Dir          string
	ManifestPath string
	SystemPaths  []string

	LookPath func(file string) (string, error)
	ReadFile func(path string) ([]byte, error)
	Glob     func(pattern string) ([]string, error)
	Download func(ctx context.Context, url, dest string) error
	// Elevate wraps a privileged command; the default prefixes sudo unless
	// already running as root.
	Elevate func(env []string, command string, args []string) (string, []string, []string)

	// Output receives the installers' stdout and stderr.
	Output io.Writer
}

// New returns a provisioner for the given config using host defaults.
func New(cfg config.SteamCMDConfig, logger zerolog.Logger) *Provisioner {
	return &Provisioner{Config: cfg, Logger: logger, Dir: paths.ExpandHome(cfg.Dir)}
}

func (p *Provisioner) defaults() error {
	if p.Runner == nil {
		p.Runner = runner.CmdRunner{}
	}
	if p.GOOS == "" {
		p.GOOS = runtime.GOOS
	}
	if p.Dir == "" {
		dir, err := paths.DefaultSteamCMDDir(p.GOOS)
		if err != nil {
			return err
		}
		p.Dir = dir
	}
	if p.ManifestPath == "" {
		path, err := DefaultManifestPath()
		if err != nil {
			return err
		}
		p.ManifestPath = path
	}
	if p.SystemPaths == nil && p.GOOS != "windows" {
		p.SystemPaths = DefaultSystemPaths
	}
	if p.LookPath == nil {
		p.LookPath = exec.LookPath
	}
	if p.ReadFile == nil {
		p.ReadFile = os.ReadFile
	}
	if p.Glob == nil {
		p.Glob = filepath.Glob
	}
	if p.Download == nil {
		p.Download = func(ctx context.Context, url, dest string) error {
			return archive.Download(ctx, url, dest, archive.DownloadOptions{})
		}
	}
	if p.Elevate == nil {
		p.Elevate = sudoElevate
	}
	if p.Output == nil {
		p.Output = io.Discard
	}
	return nil
}

// EnsureInstalled returns a verified SteamCMD, installing it with the first
// matching strategy when none is present. Re-running on a host that already
// has a working binary does not invoke any strategy.
func (p *Provisioner) EnsureInstalled(ctx context.Context, profile system.Profile) (Location, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := p.defaults(); err != nil {
		return Location{}, err
	}

	if loc, ok := p.locateVerified(ctx); ok {
		p.Logger.Info().Str("path", loc.Path).Str("source", string(loc.Source)).Msg("steamcmd already installed")
		return loc, nil
	}

	strategy := Select(profile)
	log := p.Logger.With().Str("strategy", string(strategy.Name)).Logger()
	log.Info().Str("family", string(profile.Family)).Msg("installing steamcmd")

	binary, err := strategy.Install(ctx, p, profile)
	if err != nil {
		return Location{}, &ProvisionError{Strategy: strategy.Name, ExitCode: runner.ExitCode(err), Err: err}
	}

	if ok, _ := paths.FileExists(binary); !ok {
		return Location{}, &ProvisionError{Strategy: strategy.Name, Err: fmt.Errorf("binary not found at %s after install", binary)}
	}
	if err := p.Verify(ctx, binary); err != nil {
		return Location{}, &ProvisionError{Strategy: strategy.Name, ExitCode: runner.ExitCode(err), Err: err}
	}

	loc := p.newLocation(binary, strategy.Name, SourceUnknown)
	if err := recordLocation(p.ManifestPath, loc); err != nil {
		log.Warn().Err(err).Msg("could not record steamcmd location")
	}
	log.Info().Str("path", binary).Msg("steamcmd installed")
	return loc, nil
}

// Verify runs `steamcmd +quit`, which also lets SteamCMD self-update.
func (p *Provisioner) Verify(ctx context.Context, binary string) error {
	if err := p.defaults(); err != nil {
		return err
	}
	p.Logger.Debug().Str("path", binary).Msg("verifying steamcmd")
	_, err := p.Runner.Run(ctx, binary, []string{"+quit"}, runner.RunOptions{
		Dir:    filepath.Dir(binary),
		Stdout: p.Output,
		Stderr: p.Output,
	})
	if err != nil {
		return fmt.Errorf("verify %s: %w", binary, err)
	}
	return nil
}

// Lookup returns the location recorded by a previous install.
func (p *Provisioner) Lookup() (Location, error) {
	if err := p.defaults(); err != nil {
		return Location{}, err
	}
	manifest, err := loadManifest(p.ManifestPath)
	if err != nil {
		return Location{}, err
	}
	entry, ok := manifest.Entries[ToolName]
	if !ok {
		return Location{}, fmt.Errorf("%s not recorded in manifest", ToolName)
	}
	if ok, _ := paths.FileExists(entry.Location.Path); !ok {
		return Location{}, fmt.Errorf("recorded %s at %s no longer exists", ToolName, entry.Location.Path)
	}
	return entry.Location, nil
}

// Locate finds an existing binary without running it.
func (p *Provisioner) Locate() (Location, bool) {
	if err := p.defaults(); err != nil {
		return Location{}, false
	}
	for _, c := range p.candidates() {
		if ok, _ := paths.FileExists(c.path); ok {
			if c.recorded != nil {
				return *c.recorded, true
			}
			return p.newLocation(c.path, c.strategy, c.source), true
		}
	}
	return Location{}, false
}

// Status reports presence for doctor and status output.
func (p *Provisioner) Status(profile system.Profile) Status {
	st := Status{Tool: ToolName}
	if err := p.defaults(); err != nil {
		st.Error = err.Error()
		return st
	}
	loc, ok := p.Locate()
	if !ok {
		st.Error = "steamcmd not found"
		st.Hints = InstallHints(profile)
		return st
	}
	st.Present = true
	st.Path = loc.Path
	st.Source = loc.Source
	st.Strategy = loc.Strategy
	st.InstalledAt = loc.InstalledAt
	return st
}

type candidate struct {
	path     string
	source   Source
	strategy StrategyName
	recorded *Location
}

func (p *Provisioner) candidates() []candidate {
	var out []candidate
	if manifest, err := loadManifest(p.ManifestPath); err == nil {
		if entry, ok := manifest.Entries[ToolName]; ok && entry.Location.Path != "" {
			loc := entry.Location
			loc.Source = SourceManifest
			out = append(out, candidate{path: loc.Path, source: SourceManifest, strategy: loc.Strategy, recorded: &loc})
		}
	}
	if path, err := p.LookPath(ToolName); err == nil {
		out = append(out, candidate{path: path, source: SourceSystem, strategy: StrategyExisting})
	}
	for _, path := range p.SystemPaths {
		out = append(out, candidate{path: path, source: SourceSystem, strategy: StrategyExisting})
	}
	out = append(out, candidate{path: p.userBinary(), source: SourceUserDir, strategy: StrategyExisting})
	return out
}

func (p *Provisioner) locateVerified(ctx context.Context) (Location, bool) {
	seen := map[string]bool{}
	for _, c := range p.candidates() {
		if seen[c.path] {
			continue
		}
		seen[c.path] = true
		if ok, _ := paths.FileExists(c.path); !ok {
			continue
		}
		if err := p.Verify(ctx, c.path); err != nil {
			p.Logger.Warn().Err(err).Str("path", c.path).Msg("existing steamcmd failed verification")
			continue
		}
		if c.recorded != nil {
			return *c.recorded, true
		}
		loc := p.newLocation(c.path, c.strategy, c.source)
		if err := recordLocation(p.ManifestPath, loc); err != nil {
			p.Logger.Warn().Err(err).Msg("could not record steamcmd location")
		}
		return loc, true
	}
	return Location{}, false
}

func (p *Provisioner) newLocation(binary string, strategy StrategyName, source Source) Location {
	loc := Location{
		Path:        binary,
		Dir:         filepath.Dir(binary),
		Strategy:    strategy,
		Source:      source,
		InstalledAt: time.Now().UTC().Format(time.RFC3339),
	}
	if sum, err := archive.Checksum(binary); err == nil {
		loc.Checksum = sum
	}
	return loc
}

// userBinary is the entry point archive strategies produce.
func (p *Provisioner) userBinary() string {
	if p.GOOS == "windows" {
		return filepath.Join(p.Dir, "steamcmd.exe")
	}
	return filepath.Join(p.Dir, "steamcmd.sh")
}

func (p *Provisioner) systemBinary() (string, error) {
	if path, err := p.LookPath(ToolName); err == nil {
		return path, nil
	}
	for _, path := range p.SystemPaths {
		if ok, _ := paths.FileExists(path); ok {
			return path, nil
		}
	}
	return "", errors.New("steamcmd not found on PATH after package install")
}

// run executes a command, streaming its output.
func (p *Provisioner) run(ctx context.Context, dir string, env []string, stdin io.Reader, command string, args ...string) error {
	p.Logger.Debug().Str("command", command).Strs("args", args).Msg("running")
	_, err := p.Runner.Run(ctx, command, args, runner.RunOptions{
		Dir:    dir,
		Env:    env,
		Stdin:  stdin,
		Stdout: p.Output,
		Stderr: p.Output,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// runPrivileged runs command through Elevate.
func (p *Provisioner) runPrivileged(ctx context.Context, env []string, stdin io.Reader, command string, args ...string) error {
	cmd, cmdArgs, cmdEnv := p.Elevate(env, command, args)
	return p.run(ctx, "", cmdEnv, stdin, cmd, cmdArgs...)
}

func sudoElevate(env []string, command string, args []string) (string, []string, []string) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		return command, args, env
	}
	// sudo resets the environment, so variables travel as VAR=value args.
	out := append(append([]string{}, env...), command)
	return "sudo", append(out, args...), nil
}
