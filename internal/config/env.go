package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvInstallDir  = "VILEHVH_INSTALL_DIR"
	EnvSteamUser   = "VILEHVH_STEAM_USER"
	EnvSteamCMDDir = "VILEHVH_STEAMCMD_DIR"
	EnvValidate    = "VILEHVH_VALIDATE"
)

// LoadDotenv loads KEY=value pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotenv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment overrides using lookup (os.LookupEnv in
// production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvInstallDir); ok && strings.TrimSpace(v) != "" {
		c.InstallDir = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSteamUser); ok && strings.TrimSpace(v) != "" {
		c.Steam.Username = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSteamCMDDir); ok && strings.TrimSpace(v) != "" {
		c.SteamCMD.Dir = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvValidate); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Steam.Validate = boolPtr(b)
		}
	}
}
