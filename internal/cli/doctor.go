package cli

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"vilehvh/internal/config"
	"vilehvh/internal/mods"
	"vilehvh/internal/paths"
	"vilehvh/internal/plugins"
	"vilehvh/internal/system"
	"vilehvh/internal/tools"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the host, SteamCMD and the deployed server",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, cfgErr := loadConfig()
	checks := []healthCheck{checkConfig(cfg, cfgErr)}
	if cfgErr != nil {
		// Can't proceed with further checks without config
		return writeDoctorResult(cmd, "-", checks)
	}

	profile := probeSystem(cmd.Context(), logger)
	checks = append(checks, checkSystem(profile))
	checks = append(checks, checkSteamCMD(newProvisioner(cfg).Status(profile)))

	root := cfg.InstallDir
	target, err := resolveTarget(cfg, runtime.GOOS)
	if err != nil {
		checks = append(checks, healthCheck{Name: "Server", Status: "warning", Summary: err.Error()})
		return writeDoctorResult(cmd, nonEmptyOrDash(root), checks)
	}
	checks = append(checks, checkServer(target, runtime.GOOS))
	checks = append(checks, checkMods(cfg, target))
	checks = append(checks, checkPlugins(cfg, target))
	return writeDoctorResult(cmd, target.Root, checks)
}

func checkConfig(cfg config.Config, cfgErr error) healthCheck {
	if cfgErr != nil {
		return healthCheck{Name: "Config", Status: "error", Summary: cfgErr.Error()}
	}

	var warnings, errors int
	var first string
	for _, v := range cfg.Validate() {
		switch v.Level {
		case "warning":
			warnings++
		case "error":
			errors++
		}
		if first == "" {
			first = v.Message
		}
	}

	summary := "app " + cfg.Steam.AppID
	if errors > 0 {
		return healthCheck{Name: "Config", Status: "error", Summary: fmt.Sprintf("%d errors; %s", errors, first)}
	}
	if warnings > 0 {
		return healthCheck{Name: "Config", Status: "warning", Summary: fmt.Sprintf("%s; %d warnings; %s", summary, warnings, first)}
	}
	return healthCheck{Name: "Config", Status: "ok", Summary: summary}
}

func checkSystem(profile system.Profile) healthCheck {
	summary := strings.TrimSpace(fmt.Sprintf("%s %s %s", profile.Family, profile.DistroID, profile.DistroVersion)) + " " + profile.Arch
	if profile.Ambiguous {
		return healthCheck{Name: "System", Status: "warning", Summary: summary + " (unrecognized, using generic Linux)"}
	}
	return healthCheck{Name: "System", Status: "ok", Summary: summary}
}

func checkSteamCMD(st tools.Status) healthCheck {
	if st.Error != "" {
		return healthCheck{Name: "SteamCMD", Status: "error", Summary: st.Error}
	}
	if !st.Present {
		summary := "not installed; run `vilehvh steamcmd install`"
		if len(st.Hints) > 0 {
			summary += " or " + st.Hints[0]
		}
		return healthCheck{Name: "SteamCMD", Status: "error", Summary: summary}
	}
	return healthCheck{Name: "SteamCMD", Status: "ok", Summary: fmt.Sprintf("%s (%s)", st.Path, nonEmptyOrDash(string(st.Source)))}
}

func checkServer(target paths.InstallTarget, goos string) healthCheck {
	launcher := "srcds_run"
	if goos == "windows" {
		launcher = "srcds.exe"
	}
	if ok, _ := paths.FileExists(filepath.Join(target.Root, launcher)); !ok {
		return healthCheck{Name: "Server", Status: "error", Summary: launcher + " missing; run `vilehvh deploy`"}
	}
	return healthCheck{Name: "Server", Status: "ok", Summary: launcher + " present"}
}

func checkMods(cfg config.Config, target paths.InstallTarget) healthCheck {
	inst := &mods.Installer{Target: target}
	var installed, missing []string
	for _, spec := range mods.DefaultSpecs(cfg.Mods, runtime.GOOS) {
		if inst.IsInstalled(spec) {
			installed = append(installed, spec.Name)
		} else {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return healthCheck{Name: "Mods", Status: "warning", Summary: "missing " + joinComma(missing) + "; run `vilehvh mods install`"}
	}
	return healthCheck{Name: "Mods", Status: "ok", Summary: joinComma(installed)}
}

func checkPlugins(cfg config.Config, target paths.InstallTarget) healthCheck {
	records, err := plugins.NewManager(target, cfg.Plugins, logger).List()
	if err != nil {
		return healthCheck{Name: "Plugins", Status: "error", Summary: err.Error()}
	}
	var enabled int
	for _, r := range records {
		if r.Enabled {
			enabled++
		}
	}
	return healthCheck{Name: "Plugins", Status: "ok", Summary: fmt.Sprintf("%d enabled, %d disabled", enabled, len(records)-enabled)}
}

func writeDoctorResult(cmd *cobra.Command, serverRoot string, checks []healthCheck) error {
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), checks)
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("SERVER HEALTH:")+" "+serverRoot)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-10s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}

func joinComma(items []string) string {
	if len(items) == 0 {
		return ""
	}
	result := items[0]
	for _, item := range items[1:] {
		result += ", " + item
	}
	return result
}
