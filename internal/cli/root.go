package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vilehvh/internal/config"
	"vilehvh/internal/logx"
	"vilehvh/internal/paths"
)

var (
	configPath string
	installDir string
	outputJSON bool
	verbosity  int

	logger    = zerolog.Nop()
	logCloser io.Closer
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "vilehvh",
		Short:             "Deploy a CS:GO Legacy dedicated server with Metamod, SourceMod and plugins",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
		PersistentPostRun: func(*cobra.Command, []string) {
			if logCloser != nil {
				_ = logCloser.Close()
				logCloser = nil
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to vilehvh.yaml (default: XDG config dir)")
	cmd.PersistentFlags().StringVar(&installDir, "install-dir", "", "Server install directory")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v debug, -vv trace)")

	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newSteamCMDCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newDeployCmd())
	cmd.AddCommand(newModsCmd())
	cmd.AddCommand(newPluginsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// setupLogging loads .env overrides and builds the run logger.
func setupLogging(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotenv(".env"); err != nil {
		return err
	}
	logsDir, err := paths.LogsDir()
	if err != nil {
		// Console logging still works without a state dir.
		logsDir = ""
	}
	l, closer, err := logx.Setup(logx.Options{
		Verbosity: verbosity,
		Console:   cmd.ErrOrStderr(),
		LogsDir:   logsDir,
		Command:   cmd.Name(),
	})
	if err != nil {
		return err
	}
	logger = l
	logCloser = closer
	return nil
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = paths.ConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if installDir != "" {
		cfg.InstallDir = installDir
	}
	return cfg, nil
}

// resolveTarget returns the install target for commands that operate on an
// existing server.
func resolveTarget(cfg config.Config, goos string) (paths.InstallTarget, error) {
	dir := cfg.InstallDir
	if dir == "" {
		def, err := paths.DefaultInstallRoot(goos)
		if err != nil {
			return paths.InstallTarget{}, err
		}
		dir = def
	}
	target, err := paths.NewInstallTarget(dir)
	if err != nil {
		return paths.InstallTarget{}, err
	}
	if ok, _ := paths.DirExists(target.Root); !ok {
		return paths.InstallTarget{}, fmt.Errorf("%w: %s (use --install-dir)", errNoServer, target.Root)
	}
	return target, nil
}

var errNoServer = errors.New("server install directory not found")
