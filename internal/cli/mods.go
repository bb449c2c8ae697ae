package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"vilehvh/internal/mods"
	"vilehvh/internal/progress"
	"vilehvh/internal/tui"
)

var (
	modsForce      bool
	modsNoProgress bool
)

func newModsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mods",
		Short: "Manage Metamod:Source and SourceMod",
	}
	install := &cobra.Command{
		Use:   "install",
		Short: "Install Metamod:Source then SourceMod into the server",
		Args:  cobra.NoArgs,
		RunE:  runModsInstall,
	}
	install.Flags().BoolVar(&modsForce, "force", false, "Reinstall even if already installed")
	install.Flags().BoolVar(&modsNoProgress, "no-progress", false, "Disable interactive progress output")
	cmd.AddCommand(install)
	return cmd
}

func runModsInstall(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, err := resolveTarget(cfg, runtime.GOOS)
	if err != nil {
		return err
	}
	installer := &mods.Installer{Target: target, Logger: logger, Force: modsForce}
	specs := mods.DefaultSpecs(cfg.Mods, runtime.GOOS)
	rec := &progress.Recorder{}

	install := func(rep progress.Reporter) error {
		installer.Reporter = fanOut{rec, rep}
		return installer.InstallAll(cmd.Context(), specs)
	}
	switch tui.DetectMode(cmd.OutOrStdout(), modsNoProgress, outputJSON) {
	case tui.ModeTUI:
		err = tui.RunWithWork(cmd.OutOrStdout(), tui.NewProgressModel("Installing mods"), func(rep *tui.ProgramReporter) error {
			return install(rep)
		})
	case tui.ModePlain:
		err = install(tui.NewLineReporter(cmd.OutOrStdout()))
	default:
		err = install(progress.Discard)
	}

	if outputJSON {
		if jerr := writeJSON(cmd.OutOrStdout(), latestTasks(rec)); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return err
	}
	if !outputJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "Metamod:Source and SourceMod installed in %s\n", target.GameDir)
	}
	return nil
}

// fanOut reports to every reporter in order.
type fanOut []progress.Reporter

func (f fanOut) Report(task progress.Task) {
	for _, r := range f {
		r.Report(task)
	}
}

// latestTasks keeps the last snapshot per task name, in first-seen order.
func latestTasks(rec *progress.Recorder) []progress.Task {
	var order []string
	last := map[string]progress.Task{}
	for _, task := range rec.Snapshots() {
		if _, ok := last[task.Name]; !ok {
			order = append(order, task.Name)
		}
		last[task.Name] = task
	}
	out := make([]progress.Task, len(order))
	for i, name := range order {
		out[i] = last[name]
	}
	return out
}
