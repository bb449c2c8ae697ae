package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"vilehvh/internal/plugins"
	"vilehvh/internal/tui"
)

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Install and manage SourceMod plugins",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cobra.NoArgs,
		RunE:  runPluginsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "install <dir|file.smx|url|owner/repo>",
		Short: "Merge a plugin bundle (addons/sourcemod/...) into the server",
		Args:  cobra.ExactArgs(1),
		RunE:  runPluginsInstall,
	})
	for _, action := range []struct {
		use   string
		short string
		fn    func(*plugins.Manager, string) error
	}{
		{"enable", "Enable a disabled plugin", (*plugins.Manager).Enable},
		{"disable", "Disable a plugin without removing it", (*plugins.Manager).Disable},
		{"remove", "Delete a plugin", (*plugins.Manager).Remove},
	} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action.use + " <name>",
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := pluginManager()
				if err != nil {
					return err
				}
				if err := action.fn(m, args[0]); err != nil {
					return err
				}
				return printPlugins(cmd, m)
			},
		})
	}
	return cmd
}

func pluginManager() (*plugins.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	target, err := resolveTarget(cfg, runtime.GOOS)
	if err != nil {
		return nil, err
	}
	return plugins.NewManager(target, cfg.Plugins, logger), nil
}

func runPluginsList(cmd *cobra.Command, _ []string) error {
	m, err := pluginManager()
	if err != nil {
		return err
	}
	return printPlugins(cmd, m)
}

func runPluginsInstall(cmd *cobra.Command, args []string) error {
	m, err := pluginManager()
	if err != nil {
		return err
	}
	if _, err := m.InstallFromSource(cmd.Context(), args[0]); err != nil {
		return err
	}
	return printPlugins(cmd, m)
}

func printPlugins(cmd *cobra.Command, m *plugins.Manager) error {
	records, err := m.List()
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), records)
	}
	if len(records) == 0 {
		cmd.Println("(no plugins installed)")
		return nil
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", tui.HeaderStyle.Render(fmt.Sprintf("%-32s", "NAME")), tui.HeaderStyle.Render("STATUS"))
	for _, r := range records {
		status := "disabled"
		if r.Enabled {
			status = "enabled"
		}
		fmt.Fprintf(out, "%-32s  %s\n", r.Name, tui.StatusStyle(status).Render(status))
	}
	return nil
}
