package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vilehvh/internal/system"
)

// probeSystem is replaced in tests.
var probeSystem = system.Probe

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Print the detected platform profile",
		Args:  cobra.NoArgs,
		RunE:  runDetect,
	}
}

func runDetect(cmd *cobra.Command, _ []string) error {
	profile := probeSystem(cmd.Context(), logger)
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), profile)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, profile.String())
	if profile.Ambiguous {
		fmt.Fprintln(out, "Warning: host not recognized; treated as generic Linux")
	}
	return nil
}

func nonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
