package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate runs static checks against the configuration.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateAppID()...)
	results = append(results, c.validateURLs()...)
	results = append(results, c.validatePlugins()...)
	if strings.TrimSpace(c.Steam.Username) == "" {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "steam.username not set; it will be prompted for",
		})
	}
	return results
}

func (c Config) validateAppID() []ValidationResult {
	if _, err := strconv.ParseUint(strings.TrimSpace(c.Steam.AppID), 10, 32); err != nil {
		return []ValidationResult{{
			Level:   "error",
			Message: fmt.Sprintf("steam.app_id %q is not a numeric app id", c.Steam.AppID),
		}}
	}
	return nil
}

func (c Config) validateURLs() []ValidationResult {
	entries := []struct {
		field string
		value string
	}{
		{"steamcmd.linux_url", c.SteamCMD.LinuxURL},
		{"steamcmd.windows_url", c.SteamCMD.WindowsURL},
		{"mods.metamod.linux_url", c.Mods.Metamod.LinuxURL},
		{"mods.metamod.windows_url", c.Mods.Metamod.WindowsURL},
		{"mods.sourcemod.linux_url", c.Mods.Sourcemod.LinuxURL},
		{"mods.sourcemod.windows_url", c.Mods.Sourcemod.WindowsURL},
	}

	var results []ValidationResult
	for _, e := range entries {
		u, err := url.Parse(e.value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s %q is not an http(s) url", e.field, e.value),
			})
		}
	}
	return results
}

func (c Config) validatePlugins() []ValidationResult {
	var results []ValidationResult
	if m := c.Plugins.Modloader; m == "" || m == "." || m == ".." || strings.ContainsAny(m, `/\`) {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("plugins.modloader %q must be a single directory name under addons/", m),
		})
	}
	if !strings.HasPrefix(c.Plugins.Extension, ".") {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("plugins.extension %q must start with a dot", c.Plugins.Extension),
		})
	}
	if c.Plugins.DisabledSuffix == "" || c.Plugins.DisabledSuffix == c.Plugins.Extension {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "plugins.disabled_suffix must be set and differ from the extension",
		})
	}
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}
