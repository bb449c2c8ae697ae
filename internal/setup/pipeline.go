// Package setup runs the full deployment pipeline: probe, provision SteamCMD,
// fix the install target, authenticate, deploy the server payload and
// install the archive mods.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/rs/zerolog"

	"vilehvh/internal/config"
	"vilehvh/internal/deploy"
	"vilehvh/internal/mods"
	"vilehvh/internal/paths"
	"vilehvh/internal/progress"
	"vilehvh/internal/runner"
	"vilehvh/internal/session"
	"vilehvh/internal/system"
	"vilehvh/internal/tools"
)

// Phase names one pipeline step.
type Phase string

const (
	PhaseProbe        Phase = "probe"
	PhaseProvision    Phase = "provision"
	PhaseTarget       Phase = "target"
	PhaseAuthenticate Phase = "authenticate"
	PhaseDeploy       Phase = "deploy"
	PhaseMods         Phase = "mods"
)

// PhaseError is the first fatal failure of a run.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// ErrTargetMissing means the server was skipped and no deployed server
// exists at the install dir.
var ErrTargetMissing = errors.New("server install directory not found")

// Options select which phases run.
type Options struct {
	InstallDir   string
	AppID        string
	Validate     bool
	FirstLogin   bool
	SkipSteamCMD bool
	SkipServer   bool
	SkipMods     bool
	ForceMods    bool
}

// CredentialSource asks the operator for credentials once they are needed.
type CredentialSource func(ctx context.Context, firstLogin bool) (session.Credentials, error)

// Provisioner is the subset of *tools.Provisioner the pipeline uses.
type Provisioner interface {
	EnsureInstalled(ctx context.Context, profile system.Profile) (tools.Location, error)
	Lookup() (tools.Location, error)
}

// StatusUpdater shows a one-line description of the running phase.
type StatusUpdater interface {
	Update(msg string)
}

// Result summarizes a run, including the phases it skipped.
type Result struct {
	Profile        system.Profile      `json:"profile"`
	SteamCMD       tools.Location      `json:"steamcmd"`
	Target         paths.InstallTarget `json:"target"`
	Login          *session.Result     `json:"login,omitempty"`
	Payload        *progress.Task      `json:"payload,omitempty"`
	FixedLibraries []string            `json:"fixed_libraries,omitempty"`
	Mods           []string            `json:"mods,omitempty"`
	Skipped        []Phase             `json:"skipped,omitempty"`
}

// Pipeline holds the collaborators for one setup run.
type Pipeline struct {
	Config      config.Config
	Logger      zerolog.Logger
	Probe       func(ctx context.Context) system.Profile
	Provisioner Provisioner
	Launcher    runner.Launcher
	Auth        *session.Authenticator
	Credentials CredentialSource
	Reporter    progress.Reporter
	Status      StatusUpdater
	// Echo shows raw SteamCMD output during the first login.
	Echo   io.Writer
	Client *http.Client
	GOOS   string
}

// New wires a pipeline with the real probe, provisioner and launcher.
func New(cfg config.Config, auth *session.Authenticator, creds CredentialSource, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Config:      cfg,
		Logger:      logger,
		Probe:       func(ctx context.Context) system.Profile { return system.Probe(ctx, logger) },
		Provisioner: tools.New(cfg.SteamCMD, logger),
		Launcher:    runner.CmdLauncher{},
		Auth:        auth,
		Credentials: creds,
	}
}

func (p *Pipeline) goos() string {
	if p.GOOS != "" {
		return p.GOOS
	}
	return runtime.GOOS
}

func (p *Pipeline) status(msg string) {
	if p.Status != nil {
		p.Status.Update(msg)
	}
}

// Run executes every phase in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	run, err := p.Prepare(ctx, opts)
	if err != nil {
		return run.Result, err
	}
	return run.Transfer(ctx)
}

// Run is a prepared setup whose transfer phases have not started yet.
type Run struct {
	Result Result

	p      *Pipeline
	opts   Options
	driver *deploy.Driver
}

// Prepare runs the interactive phases: probe, provision, target and
// authenticate. The returned Run is never nil; on error it carries the
// partial result.
func (p *Pipeline) Prepare(ctx context.Context, opts Options) (*Run, error) {
	log := p.Logger.With().Str("component", "setup").Logger()
	run := &Run{p: p, opts: opts}
	res := &run.Result

	p.status("Detecting system...")
	res.Profile = p.Probe(ctx)
	if res.Profile.Ambiguous {
		log.Warn().Str("profile", res.Profile.String()).Msg("unrecognized host, treating as generic Linux")
	}
	log.Info().Str("family", string(res.Profile.Family)).Str("distro", res.Profile.DistroID).Msg("system detected")

	loc, err := p.provision(ctx, opts, res.Profile, res)
	if err != nil {
		return run, &PhaseError{Phase: PhaseProvision, Err: err}
	}
	res.SteamCMD = loc

	p.status("Preparing install directory...")
	run.driver = deploy.New(p.Launcher, loc.Path, p.Auth, p.Logger)
	run.driver.GOOS = p.goos()
	run.driver.Echo = p.Echo
	if err := p.prepareTarget(run.driver, opts); err != nil {
		return run, &PhaseError{Phase: PhaseTarget, Err: err}
	}
	res.Target, _ = run.driver.Target()

	if opts.SkipServer {
		log.Info().Msg("skipping server deployment")
		res.Skipped = append(res.Skipped, PhaseAuthenticate, PhaseDeploy)
		return run, nil
	}
	if err := p.authenticate(ctx, run.driver, opts, res); err != nil {
		return run, &PhaseError{Phase: PhaseAuthenticate, Err: err}
	}
	return run, nil
}

// Transfer runs the non-interactive phases: deploy and mods. Progress goes
// to the pipeline's Reporter as it is at the time of the call.
func (r *Run) Transfer(ctx context.Context) (Result, error) {
	p := r.p
	res := &r.Result
	r.driver.Reporter = p.Reporter

	if !r.opts.SkipServer {
		if err := p.deploy(ctx, r.driver, r.opts, res); err != nil {
			return *res, &PhaseError{Phase: PhaseDeploy, Err: err}
		}
	}

	if r.opts.SkipMods {
		p.Logger.Info().Str("component", "setup").Msg("skipping mod installation")
		res.Skipped = append(res.Skipped, PhaseMods)
		return *res, nil
	}
	if err := p.installMods(ctx, res.Target, r.opts, res); err != nil {
		return *res, &PhaseError{Phase: PhaseMods, Err: err}
	}
	return *res, nil
}

func (p *Pipeline) provision(ctx context.Context, opts Options, profile system.Profile, res *Result) (tools.Location, error) {
	if opts.SkipSteamCMD {
		res.Skipped = append(res.Skipped, PhaseProvision)
		loc, err := p.Provisioner.Lookup()
		if err != nil {
			return tools.Location{}, fmt.Errorf("steamcmd not found (run without --skip-steamcmd): %w", err)
		}
		return loc, nil
	}
	p.status("Provisioning SteamCMD...")
	return p.Provisioner.EnsureInstalled(ctx, profile)
}

func (p *Pipeline) prepareTarget(driver *deploy.Driver, opts Options) error {
	dir := opts.InstallDir
	if dir == "" {
		dir = p.Config.InstallDir
	}
	if dir == "" {
		def, err := paths.DefaultInstallRoot(p.goos())
		if err != nil {
			return err
		}
		dir = def
	}
	if opts.SkipServer {
		target, err := paths.NewInstallTarget(dir)
		if err != nil {
			return err
		}
		if ok, _ := paths.DirExists(target.Root); !ok {
			return fmt.Errorf("%w: %s", ErrTargetMissing, target.Root)
		}
	}
	return driver.SetInstallTarget(dir)
}

func (p *Pipeline) authenticate(ctx context.Context, driver *deploy.Driver, opts Options, res *Result) error {
	if p.Credentials == nil {
		return errors.New("no credential source configured")
	}
	// Credentials may pause the status line for prompts; it stays paused
	// while SteamCMD talks to the operator.
	p.status("Logging in to Steam...")
	creds, err := p.Credentials(ctx, opts.FirstLogin)
	if err != nil {
		return err
	}
	creds.FirstLogin = opts.FirstLogin

	login, err := driver.Authenticate(ctx, creds)
	if err != nil {
		if errors.Is(err, session.ErrNoCachedCredentials) {
			return fmt.Errorf("%w (run again with --first-login)", err)
		}
		return err
	}
	res.Login = &login
	return nil
}

func (p *Pipeline) deploy(ctx context.Context, driver *deploy.Driver, opts Options, res *Result) error {
	appID := opts.AppID
	if appID == "" {
		appID = p.Config.Steam.AppID
	}
	p.status(fmt.Sprintf("Deploying app %s...", appID))
	task, err := driver.Deploy(ctx, appID, opts.Validate)
	res.Payload = task
	if err != nil {
		return err
	}
	fixed, err := driver.FixBundledLibraries()
	if err != nil {
		p.Logger.Warn().Err(err).Msg("could not move bundled libraries aside")
	}
	res.FixedLibraries = fixed
	return nil
}

func (p *Pipeline) installMods(ctx context.Context, target paths.InstallTarget, opts Options, res *Result) error {
	p.status("Installing Metamod:Source and SourceMod...")
	installer := &mods.Installer{
		Target:   target,
		Client:   p.Client,
		Logger:   p.Logger,
		Reporter: p.Reporter,
		Force:    opts.ForceMods,
	}
	specs := mods.DefaultSpecs(p.Config.Mods, p.goos())
	if err := installer.InstallAll(ctx, specs); err != nil {
		return err
	}
	for _, spec := range specs {
		res.Mods = append(res.Mods, spec.Name)
	}
	return nil
}
