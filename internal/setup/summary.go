package setup

import (
	"fmt"
	"strings"
)

// LaunchCommand is the command line that starts the deployed server.
func LaunchCommand(goos string) string {
	bin := "./srcds_run"
	if goos == "windows" {
		bin = "srcds.exe"
	}
	return bin + " -game csgo -console -usercon +game_type 0 +game_mode 1 +mapgroup mg_active +map de_dust2"
}

// NextSteps renders the post-setup checklist as Markdown.
func NextSteps(res Result, goos string) string {
	var b strings.Builder
	b.WriteString("# Setup complete\n\n")
	fmt.Fprintf(&b, "Server installed in `%s`.\n\n", res.Target.Root)

	if res.Login != nil && res.Login.Warning != "" {
		fmt.Fprintf(&b, "> **Warning:** %s\n\n", res.Login.Warning)
	}
	if len(res.Skipped) > 0 {
		names := make([]string, len(res.Skipped))
		for i, p := range res.Skipped {
			names[i] = string(p)
		}
		fmt.Fprintf(&b, "Skipped: %s.\n\n", strings.Join(names, ", "))
	}

	b.WriteString("## Next steps\n\n")
	b.WriteString("1. Configure server settings (`csgo/cfg/server.cfg`)\n")
	b.WriteString("2. Add SourceMod admins if needed\n")
	b.WriteString("3. Install additional plugins with `vilehvh plugins install`\n")
	b.WriteString("4. Start your server:\n\n")
	fmt.Fprintf(&b, "```sh\ncd %s\n%s\n```\n", res.Target.Root, LaunchCommand(goos))
	return b.String()
}
