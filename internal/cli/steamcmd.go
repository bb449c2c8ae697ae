package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vilehvh/internal/config"
	"vilehvh/internal/tools"
	"vilehvh/internal/tui"
)

// newProvisioner is replaced in tests.
var newProvisioner = func(cfg config.Config) *tools.Provisioner {
	return tools.New(cfg.SteamCMD, logger)
}

func newSteamCMDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steamcmd",
		Short: "Install or inspect SteamCMD",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install SteamCMD with the strategy for this platform",
		Args:  cobra.NoArgs,
		RunE:  runSteamCMDInstall,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show where SteamCMD is and how it was installed",
		Args:  cobra.NoArgs,
		RunE:  runSteamCMDStatus,
	})
	return cmd
}

func runSteamCMDInstall(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	profile := probeSystem(cmd.Context(), logger)
	prov := newProvisioner(cfg)

	var status *tui.StatusWriter
	if tui.DetectMode(cmd.ErrOrStderr(), false, outputJSON) == tui.ModeTUI {
		status = tui.NewStatusWriter(cmd.ErrOrStderr())
		status.Update(fmt.Sprintf("Installing SteamCMD (%s)...", tools.Select(profile).Name))
	}
	loc, err := prov.EnsureInstalled(cmd.Context(), profile)
	if status != nil {
		status.Stop()
	}
	if err != nil {
		for _, hint := range tools.InstallHints(profile) {
			fmt.Fprintln(cmd.ErrOrStderr(), "hint: "+hint)
		}
		return err
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), loc)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "SteamCMD ready: %s (%s, %s)\n", loc.Path, loc.Strategy, loc.Source)
	return nil
}

func runSteamCMDStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := newProvisioner(cfg).Status(probeSystem(cmd.Context(), logger))
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	printToolStatus(cmd, st)
	return nil
}

func printToolStatus(cmd *cobra.Command, st tools.Status) {
	present := "no"
	if st.Present {
		present = "yes"
	}
	cmd.Printf("%-10s %-9s %-12s %-7s %s\n", "Tool", "Source", "Strategy", "OK", "Path")
	cmd.Printf("%-10s %-9s %-12s %-7s %s\n",
		st.Tool,
		nonEmptyOrDash(string(st.Source)),
		nonEmptyOrDash(string(st.Strategy)),
		present,
		nonEmptyOrDash(st.Path),
	)
	if st.Error != "" {
		cmd.Println("error: " + st.Error)
	}
	if !st.Present && len(st.Hints) > 0 {
		cmd.Println("hints:\n  " + strings.Join(st.Hints, "\n  "))
	}
}
