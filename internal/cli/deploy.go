package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"vilehvh/internal/paths"
	"vilehvh/internal/progress"
	"vilehvh/internal/tui"
)

var (
	deployNoValidate bool
	deployUsername   string
	deployAppID      string
	deployNoProgress bool
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Install or update the server payload with cached credentials",
		Args:  cobra.NoArgs,
		RunE:  runDeploy,
	}
	cmd.Flags().BoolVar(&deployNoValidate, "no-validate", false, "Do not validate server files")
	cmd.Flags().StringVar(&deployUsername, "username", "", "Steam username (default from config)")
	cmd.Flags().StringVar(&deployAppID, "app-id", "", "Steam app id (default from config)")
	cmd.Flags().BoolVar(&deployNoProgress, "no-progress", false, "Disable interactive progress output")
	return cmd
}

func defaultInstallDir() (string, error) {
	return paths.DefaultInstallRoot(runtime.GOOS)
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := newDriver(cfg)
	if err != nil {
		return err
	}
	d.Username = deployUsername
	if d.Username == "" {
		d.Username = cfg.Steam.Username
	}
	if d.Username == "" {
		p := newPrompter(cmd.ErrOrStderr())
		d.Username, err = p.Line("Steam username", "")
		_ = p.Close()
		if err != nil {
			return err
		}
	}
	appID := deployAppID
	if appID == "" {
		appID = cfg.Steam.AppID
	}
	validate := cfg.Steam.ValidateEnabled() && !deployNoValidate

	var task *progress.Task
	deployFn := func(rep progress.Reporter) error {
		d.Reporter = rep
		var err error
		task, err = d.Deploy(cmd.Context(), appID, validate)
		return err
	}

	switch tui.DetectMode(cmd.OutOrStdout(), deployNoProgress, outputJSON) {
	case tui.ModeTUI:
		err = tui.RunWithWork(cmd.OutOrStdout(), tui.NewProgressModel("Deploying app "+appID), func(rep *tui.ProgramReporter) error {
			return deployFn(rep)
		})
	case tui.ModePlain:
		err = deployFn(tui.NewLineReporter(cmd.OutOrStdout()))
	default:
		err = deployFn(progress.Discard)
	}
	if err != nil {
		event := logger.Error().Err(err)
		if task != nil {
			event = event.Str("last_progress", task.String())
		}
		event.Msg("deploy failed")
		return err
	}

	fixed, err := d.FixBundledLibraries()
	if err != nil {
		logger.Warn().Err(err).Msg("could not move bundled libraries aside")
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), struct {
			Task           *progress.Task `json:"task"`
			FixedLibraries []string       `json:"fixed_libraries,omitempty"`
		}{task, fixed})
	}
	target, _ := d.Target()
	fmt.Fprintf(cmd.OutOrStdout(), "App %s deployed to %s\n", appID, target.Root)
	return nil
}
