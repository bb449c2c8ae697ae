package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config captures deployment settings for a server host.
type Config struct {
	Version    int            `yaml:"version" toml:"version"`
	InstallDir string         `yaml:"install_dir,omitempty" toml:"install_dir,omitempty"`
	Steam      SteamConfig    `yaml:"steam" toml:"steam"`
	SteamCMD   SteamCMDConfig `yaml:"steamcmd" toml:"steamcmd"`
	Mods       ModsConfig     `yaml:"mods" toml:"mods"`
	Plugins    PluginsConfig  `yaml:"plugins" toml:"plugins"`
}

// SteamConfig describes the payload and the account used to fetch it.
type SteamConfig struct {
	Username string `yaml:"username,omitempty" toml:"username,omitempty"`
	AppID    string `yaml:"app_id" toml:"app_id"`
	Validate *bool  `yaml:"validate,omitempty" toml:"validate,omitempty"`
}

// SteamCMDConfig controls where archive-based SteamCMD installs come from.
type SteamCMDConfig struct {
	Dir        string `yaml:"dir,omitempty" toml:"dir,omitempty"`
	LinuxURL   string `yaml:"linux_url" toml:"linux_url"`
	WindowsURL string `yaml:"windows_url" toml:"windows_url"`
	AURRepo    string `yaml:"aur_repo" toml:"aur_repo"`
}

// ModsConfig lists the archive mods layered onto the payload.
type ModsConfig struct {
	Metamod   ModSource `yaml:"metamod" toml:"metamod"`
	Sourcemod ModSource `yaml:"sourcemod" toml:"sourcemod"`
}

// ModSource holds per-platform archive URLs and the marker proving extraction.
type ModSource struct {
	LinuxURL   string `yaml:"linux_url" toml:"linux_url"`
	WindowsURL string `yaml:"windows_url" toml:"windows_url"`
	Marker     string `yaml:"marker" toml:"marker"`
}

// URLFor returns the archive URL for the given GOOS.
func (m ModSource) URLFor(goos string) string {
	if goos == "windows" {
		return m.WindowsURL
	}
	return m.LinuxURL
}

// PluginsConfig describes the plugin file-naming convention.
type PluginsConfig struct {
	Modloader      string `yaml:"modloader" toml:"modloader"`
	Extension      string `yaml:"extension" toml:"extension"`
	DisabledSuffix string `yaml:"disabled_suffix" toml:"disabled_suffix"`
}

// ValidateEnabled returns the effective validate flag applying defaults.
func (s SteamConfig) ValidateEnabled() bool {
	if s.Validate == nil {
		return true
	}
	return *s.Validate
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Steam: SteamConfig{
			AppID:    "740",
			Validate: boolPtr(true),
		},
		SteamCMD: SteamCMDConfig{
			LinuxURL:   "https://steamcdn-a.akamaihd.net/client/installer/steamcmd_linux.tar.gz",
			WindowsURL: "https://steamcdn-a.akamaihd.net/client/installer/steamcmd.zip",
			AURRepo:    "https://aur.archlinux.org/steamcmd.git",
		},
		Mods: ModsConfig{
			Metamod: ModSource{
				LinuxURL:   "https://mms.alliedmods.net/mmsdrop/1.11/mmsource-1.11.0-git1148-linux.tar.gz",
				WindowsURL: "https://mms.alliedmods.net/mmsdrop/1.11/mmsource-1.11.0-git1148-windows.zip",
				Marker:     "addons/metamod.vdf",
			},
			Sourcemod: ModSource{
				LinuxURL:   "https://sm.alliedmods.net/smdrop/1.11/sourcemod-1.11.0-git6968-linux.tar.gz",
				WindowsURL: "https://sm.alliedmods.net/smdrop/1.11/sourcemod-1.11.0-git6968-windows.zip",
				Marker:     "addons/metamod/sourcemod.vdf",
			},
		},
		Plugins: PluginsConfig{
			Modloader:      "sourcemod",
			Extension:      ".smx",
			DisabledSuffix: ".disabled",
		},
	}
}

// Load reads the configuration from disk if it exists, otherwise returns the
// default configuration. Files ending in .toml are decoded as TOML, anything
// else as YAML. Environment overrides are applied in both cases.
func Load(path string) (Config, error) {
	cfg := Default()

	contents, err := os.ReadFile(path)
	switch {
	case err == nil:
		unmarshal := yaml.Unmarshal
		if isTOML(path) {
			unmarshal = toml.Unmarshal
		}
		if err := unmarshal(contents, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Steam.AppID == "" {
		c.Steam.AppID = defaults.Steam.AppID
	}
	if c.Steam.Validate == nil {
		c.Steam.Validate = boolPtr(true)
	}
	if c.SteamCMD.LinuxURL == "" {
		c.SteamCMD.LinuxURL = defaults.SteamCMD.LinuxURL
	}
	if c.SteamCMD.WindowsURL == "" {
		c.SteamCMD.WindowsURL = defaults.SteamCMD.WindowsURL
	}
	if c.SteamCMD.AURRepo == "" {
		c.SteamCMD.AURRepo = defaults.SteamCMD.AURRepo
	}
	c.Mods.Metamod.applyDefaults(defaults.Mods.Metamod)
	c.Mods.Sourcemod.applyDefaults(defaults.Mods.Sourcemod)
	if c.Plugins.Modloader == "" {
		c.Plugins.Modloader = defaults.Plugins.Modloader
	}
	if c.Plugins.Extension == "" {
		c.Plugins.Extension = defaults.Plugins.Extension
	}
	if c.Plugins.DisabledSuffix == "" {
		c.Plugins.DisabledSuffix = defaults.Plugins.DisabledSuffix
	}
}

func (m *ModSource) applyDefaults(d ModSource) {
	if m.LinuxURL == "" {
		m.LinuxURL = d.LinuxURL
	}
	if m.WindowsURL == "" {
		m.WindowsURL = d.WindowsURL
	}
	if m.Marker == "" {
		m.Marker = d.Marker
	}
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

// MarshalFor encodes the configuration in the format implied by path.
func (c Config) MarshalFor(path string) ([]byte, error) {
	if !isTOML(path) {
		return c.Marshal()
	}
	buf, err := toml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func boolPtr(v bool) *bool {
	return &v
}
