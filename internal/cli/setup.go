package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vilehvh/internal/progress"
	"vilehvh/internal/session"
	"vilehvh/internal/setup"
	"vilehvh/internal/tui"
)

var (
	setupSkipSteamCMD bool
	setupSkipServer   bool
	setupSkipMods     bool
	setupNoValidate   bool
	setupForceMods    bool
	setupUsername     string
	setupFirstLogin   bool
	setupNoProgress   bool
	setupAppID        string
)

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Provision SteamCMD, deploy the server and install Metamod/SourceMod",
		Args:  cobra.NoArgs,
		RunE:  runSetup,
	}

	cmd.Flags().BoolVar(&setupSkipSteamCMD, "skip-steamcmd", false, "Use the previously installed SteamCMD")
	cmd.Flags().BoolVar(&setupSkipServer, "skip-server", false, "Skip login and server deployment")
	cmd.Flags().BoolVar(&setupSkipMods, "skip-mods", false, "Skip Metamod:Source and SourceMod")
	cmd.Flags().BoolVar(&setupNoValidate, "no-validate", false, "Do not validate server files after download")
	cmd.Flags().BoolVar(&setupForceMods, "force-mods", false, "Reinstall mods even if present")
	cmd.Flags().StringVar(&setupUsername, "username", "", "Steam username")
	cmd.Flags().BoolVar(&setupFirstLogin, "first-login", false, "Log in interactively and cache credentials (Steam Guard)")
	cmd.Flags().BoolVar(&setupNoProgress, "no-progress", false, "Disable interactive progress output")
	cmd.Flags().StringVar(&setupAppID, "app-id", "", "Steam app id to deploy (default from config)")

	return cmd
}

func runSetup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode := tui.DetectMode(cmd.OutOrStdout(), setupNoProgress, outputJSON)
	errOut := cmd.ErrOrStderr()

	p := newPrompter(errOut)
	defer p.Close()

	opts := setup.Options{
		InstallDir:   cfg.InstallDir,
		AppID:        setupAppID,
		Validate:     cfg.Steam.ValidateEnabled() && !setupNoValidate,
		SkipSteamCMD: setupSkipSteamCMD,
		SkipServer:   setupSkipServer,
		SkipMods:     setupSkipMods,
		ForceMods:    setupForceMods,
	}
	if opts.InstallDir == "" && mode == tui.ModeTUI {
		custom, err := p.YesNo("Use a custom install directory?", false)
		if err != nil {
			return err
		}
		if custom {
			if opts.InstallDir, err = p.Line("Install directory", ""); err != nil {
				return err
			}
		}
	}
	if !opts.SkipServer {
		if opts.FirstLogin, err = askFirstLogin(p, cmd.Flags().Changed("first-login"), setupFirstLogin); err != nil {
			return err
		}
	}

	username := setupUsername
	if username == "" {
		username = cfg.Steam.Username
	}

	var status setup.StatusUpdater = logStatus{}
	pause := func() {}
	if mode == tui.ModeTUI {
		sw := tui.NewStatusWriter(errOut)
		defer sw.Stop()
		status, pause = sw, sw.Pause
	}

	auth := &session.Authenticator{Operator: operatorReader(), Notice: errOut, Logger: logger}
	pipeline := setup.New(cfg, auth, credentialSource(p, username, pause), logger)
	pipeline.Status = status
	if opts.FirstLogin && mode != tui.ModeJSON {
		pipeline.Echo = errOut
	}

	run, err := pipeline.Prepare(ctx, opts)
	if stopper, ok := status.(*tui.StatusWriter); ok {
		stopper.Stop()
	}
	if err != nil {
		return reportSetupFailure(cmd, run.Result, err)
	}

	switch mode {
	case tui.ModeTUI:
		err = tui.RunWithWork(cmd.OutOrStdout(), tui.NewProgressModel("Deploying server"), func(rep *tui.ProgramReporter) error {
			pipeline.Reporter = rep
			pipeline.Status = rep
			_, err := run.Transfer(ctx)
			return err
		})
	case tui.ModePlain:
		pipeline.Reporter = tui.NewLineReporter(cmd.OutOrStdout())
		_, err = run.Transfer(ctx)
	default:
		pipeline.Reporter = progress.Discard
		_, err = run.Transfer(ctx)
	}
	if err != nil {
		return reportSetupFailure(cmd, run.Result, err)
	}

	if mode == tui.ModeJSON {
		return writeJSON(cmd.OutOrStdout(), run.Result)
	}
	fmt.Fprint(cmd.OutOrStdout(), tui.RenderMarkdown(setup.NextSteps(run.Result, runtime.GOOS), terminalWidth()))
	return nil
}

// reportSetupFailure logs the failing phase with the last known progress.
func reportSetupFailure(cmd *cobra.Command, res setup.Result, err error) error {
	event := logger.Error().Err(err)
	var phaseErr *setup.PhaseError
	if errors.As(err, &phaseErr) {
		event = event.Str("phase", string(phaseErr.Phase))
	}
	if res.Payload != nil {
		event = event.Str("last_progress", res.Payload.String())
	}
	event.Msg("setup failed")

	if outputJSON {
		_ = writeJSON(cmd.OutOrStdout(), struct {
			Result setup.Result `json:"result"`
			Error  string       `json:"error"`
		}{res, err.Error()})
	}
	return err
}

// logStatus reports phases through the logger when no spinner is shown.
type logStatus struct{}

func (logStatus) Update(msg string) { logger.Info().Msg(msg) }

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		if w > 100 {
			return 100
		}
		return w
	}
	return 80
}
