package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vilehvh/internal/config"
	"vilehvh/internal/deploy"
	"vilehvh/internal/runner"
	"vilehvh/internal/session"
)

var (
	loginUsername   string
	loginFirstLogin bool
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Steam through SteamCMD and cache the credentials",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
	cmd.Flags().StringVar(&loginUsername, "username", "", "Steam username")
	cmd.Flags().BoolVar(&loginFirstLogin, "first-login", false, "Log in interactively (password + Steam Guard)")
	return cmd
}

// newDriver resolves the recorded SteamCMD and sets the install target,
// creating it if needed.
func newDriver(cfg config.Config) (*deploy.Driver, error) {
	loc, err := newProvisioner(cfg).Lookup()
	if err != nil {
		return nil, fmt.Errorf("%w (run `vilehvh steamcmd install` first)", err)
	}
	auth := &session.Authenticator{Operator: operatorReader(), Logger: logger}
	d := deploy.New(runner.CmdLauncher{}, loc.Path, auth, logger)
	dir := cfg.InstallDir
	if dir == "" {
		if dir, err = defaultInstallDir(); err != nil {
			return nil, err
		}
	}
	if err := d.SetInstallTarget(dir); err != nil {
		return nil, err
	}
	return d, nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := newDriver(cfg)
	if err != nil {
		return err
	}
	d.Auth.Notice = cmd.ErrOrStderr()
	d.Echo = cmd.ErrOrStderr()

	p := newPrompter(cmd.ErrOrStderr())
	defer p.Close()
	first, err := askFirstLogin(p, cmd.Flags().Changed("first-login"), loginFirstLogin)
	if err != nil {
		return err
	}
	username := loginUsername
	if username == "" {
		username = cfg.Steam.Username
	}
	creds, err := credentialSource(p, username, nil)(cmd.Context(), first)
	if err != nil {
		return err
	}

	res, err := d.Authenticate(cmd.Context(), creds)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", res.Username)
	switch {
	case res.CachePersisted:
		fmt.Fprintln(cmd.OutOrStdout(), "Credentials cached; later runs log in without a password.")
	case res.Warning != "":
		fmt.Fprintln(cmd.OutOrStdout(), "Warning: "+res.Warning)
	}
	return nil
}
