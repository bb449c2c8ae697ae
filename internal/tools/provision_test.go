package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vilehvh/internal/archive/archivetest"
	"vilehvh/internal/config"
	"vilehvh/internal/runner"
	"vilehvh/internal/runner/runnertest"
	"vilehvh/internal/system"
)

type fixture struct {
	prov      *Provisioner
	run       *runnertest.Runner
	sources   map[string]string
	sysBinary string
	downloads []string
}

func newFixture(t *testing.T, goos string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		run:       &runnertest.Runner{},
		sources:   map[string]string{},
		sysBinary: filepath.Join(dir, "usr", "games", "steamcmd"),
	}
	f.prov = &Provisioner{
		Runner:       f.run,
		Logger:       zerolog.Nop(),
		Config:       config.Default().SteamCMD,
		GOOS:         goos,
		Dir:          filepath.Join(dir, "steamcmd"),
		ManifestPath: filepath.Join(dir, "data", "tools.json"),
		SystemPaths:  []string{f.sysBinary},
		LookPath:     func(string) (string, error) { return "", errors.New("not found") },
		ReadFile: func(path string) ([]byte, error) {
			if body, ok := f.sources[path]; ok {
				return []byte(body), nil
			}
			return nil, os.ErrNotExist
		},
		Glob: func(string) ([]string, error) {
			var out []string
			for path := range f.sources {
				if strings.HasPrefix(path, "/etc/apt/sources.list.d/") {
					out = append(out, path)
				}
			}
			return out, nil
		},
		Download: func(_ context.Context, url, dest string) error {
			f.downloads = append(f.downloads, url)
			files := map[string]string{"steamcmd.sh": "#!/bin/sh\n", "linux32/steamcmd": "elf"}
			if strings.HasSuffix(dest, ".zip") {
				return os.WriteFile(dest, archivetest.Zip(t, map[string]string{"steamcmd.exe": "MZ"}), 0o644)
			}
			return os.WriteFile(dest, archivetest.TarGz(t, files), 0o644)
		},
		Elevate: func(env []string, command string, args []string) (string, []string, []string) {
			return command, args, env
		},
	}
	return f
}

func (f *fixture) installSystemBinary(t *testing.T) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(f.sysBinary), 0o755))
	require.NoError(t, os.WriteFile(f.sysBinary, []byte("#!/bin/sh\n"), 0o755))
}

func profileFor(family system.Family, distro string, managers ...system.PackageManager) system.Profile {
	return system.Profile{OS: "linux", Family: family, DistroID: distro, Arch: "amd64", PackageManagers: managers}
}

func TestExactlyOneStrategyMatches(t *testing.T) {
	families := []system.Family{system.FamilyWindows, system.FamilyArch, system.FamilyDebian, system.FamilyLinuxGeneric}
	subsets := [][]system.PackageManager{
		nil,
		{system.Apt},
		{system.Pacman},
		{system.Yay, system.Pacman},
		{system.Paru},
		{system.Dnf},
		{system.Apt, system.Pacman, system.Yay, system.Winget},
	}
	for _, family := range families {
		for _, pms := range subsets {
			profile := profileFor(family, "", pms...)
			matched := 0
			for _, s := range Strategies() {
				if s.Matches(profile) {
					matched++
				}
			}
			assert.Equal(t, 1, matched, "family=%s managers=%v", family, pms)
		}
	}
}

func TestSelect(t *testing.T) {
	assert.Equal(t, StrategyAUR, Select(profileFor(system.FamilyArch, "arch", system.Pacman)).Name)
	assert.Equal(t, StrategyApt, Select(profileFor(system.FamilyDebian, "ubuntu", system.Apt)).Name)
	assert.Equal(t, StrategyWindowsZip, Select(system.Profile{OS: "windows", Family: system.FamilyWindows}).Name)
	assert.Equal(t, StrategyTarball, Select(profileFor(system.FamilyLinuxGeneric, "fedora", system.Dnf)).Name)
	assert.Equal(t, StrategyTarball, Select(profileFor(system.FamilyDebian, "debian")).Name, "debian without apt degrades")
}

func TestAptEnablesPrerequisitesWhenMissing(t *testing.T) {
	f := newFixture(t, "linux")
	f.sources[aptSourcesList] = "deb http://archive.ubuntu.com/ubuntu jammy main restricted universe\n"
	f.run.Handler = func(call runnertest.Call) (runner.RunResult, error) {
		if call.Line() == "apt-get install -y steamcmd" {
			f.installSystemBinary(t)
		}
		return runner.RunResult{}, nil
	}

	loc, err := f.prov.EnsureInstalled(context.Background(), profileFor(system.FamilyDebian, "ubuntu", system.Apt))
	require.NoError(t, err)
	assert.Equal(t, f.sysBinary, loc.Path)
	assert.Equal(t, StrategyApt, loc.Strategy)

	assert.Equal(t, 1, f.run.Count("dpkg --add-architecture i386"))
	assert.Equal(t, 1, f.run.Count("add-apt-repository -y multiverse"))
	assert.Equal(t, 1, f.run.Count("apt-get update"))
	assert.Equal(t, 1, f.run.Count("+quit"))

	for _, call := range f.run.Calls {
		if call.Command == "debconf-set-selections" {
			assert.Contains(t, call.Stdin, "I AGREE")
		}
		if call.Command == "apt-get" {
			assert.Contains(t, call.Env, "DEBIAN_FRONTEND=noninteractive")
		}
	}
}

func TestAptSkipsPrerequisitesAlreadyEnabled(t *testing.T) {
	f := newFixture(t, "linux")
	f.sources["/etc/apt/sources.list.d/ubuntu.sources"] = "Types: deb\nURIs: http://archive.ubuntu.com/ubuntu\nSuites: noble\nComponents: main restricted universe multiverse\n"
	f.run.Handler = func(call runnertest.Call) (runner.RunResult, error) {
		switch call.Line() {
		case "dpkg --print-foreign-architectures":
			return runner.RunResult{Stdout: []byte("i386\n")}, nil
		case "apt-get install -y steamcmd":
			f.installSystemBinary(t)
		}
		return runner.RunResult{}, nil
	}

	_, err := f.prov.EnsureInstalled(context.Background(), profileFor(system.FamilyDebian, "ubuntu", system.Apt))
	require.NoError(t, err)
	assert.Zero(t, f.run.Count("--add-architecture"))
	assert.Zero(t, f.run.Count("add-apt-repository"))
	assert.Equal(t, 1, f.run.Count("apt-get install -y steamcmd"))
}

func TestAptUsesNonFreeOnDebian(t *testing.T) {
	f := newFixture(t, "linux")
	f.run.Handler = func(call runnertest.Call) (runner.RunResult, error) {
		if call.Line() == "apt-get install -y steamcmd" {
			f.installSystemBinary(t)
		}
		return runner.RunResult{}, nil
	}
	_, err := f.prov.EnsureInstalled(context.Background(), profileFor(system.FamilyDebian, "debian", system.Apt))
	require.NoError(t, err)
	assert.Equal(t, 1, f.run.Count("add-apt-repository -y non-free"))
}

func TestProvisionErrorCarriesStrategyAndExitCode(t *testing.T) {
	f := newFixture(t, "linux")
	f.run.Handler = func(call runnertest.Call) (runner.RunResult, error) {
		if call.Line() == "apt-get install -y steamcmd" {
			return runner.RunResult{ExitCode: 100}, nil
		}
		return runner.RunResult{}, nil
	}

	_, err := f.prov.EnsureInstalled(context.Background(), profileFor(system.FamilyDebian, "ubuntu", system.Apt))
	var perr *ProvisionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StrategyApt, perr.Strategy)
	assert.Equal(t, 100, perr.ExitCode)
}

func TestAURHelperAndManualBuild(t *testing.T) {
	t.Run("helper", func(t *testing.T) {
		f := newFixture(t, "linux")
		f.run.Handler = func(call runnertest.Call) (runner.RunResult, error) {
			if call.Command == "yay" {
				f.installSystemBinary(t)
			}
			return runner.RunResult{}, nil
		}
		_, err := f.prov.EnsureInstalled(context.Background(), profileFor(system.FamilyArch, "arch", system.Yay, system.Pacman))
		require.NoError(t, err)
		assert.Equal(t, 1, f.run.Count("yay -S --noconfirm steamcmd"))
		assert.Zero(t, f.run.Count("makepkg"))
	})

	t.Run("manual", func(t *testing.T) {
		f := newFixture(t, "linux")
		f.run.Handler = func(call runnertest.Call) (runner.RunResult, error) {
			if call.Command == "makepkg" {
				assert.True(t, strings.HasSuffix(call.Dir, "steamcmd"))
				f.installSystemBinary(t)
			}
			return runner.RunResult{}, nil
		}
		_, err := f.prov.EnsureInstalled(context.Background(), profileFor(system.FamilyArch, "arch", system.Pacman))
		require.NoError(t, err)
		lines := f.run.Lines()
		require.GreaterOrEqual(t, len(lines), 3)
		assert.Equal(t, "pacman -S --needed --noconfirm base-devel git", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "git clone https://aur.archlinux.org/steamcmd.git "))
		assert.Equal(t, "makepkg -si --noconfirm", lines[2])
	})
}

func TestTarballInstallIsIdempotent(t *testing.T) {
	f := newFixture(t, "linux")
	profile := profileFor(system.FamilyLinuxGeneric, "fedora", system.Dnf)

	loc, err := f.prov.EnsureInstalled(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.prov.Dir, "steamcmd.sh"), loc.Path)
	assert.Equal(t, StrategyTarball, loc.Strategy)
	assert.Len(t, f.downloads, 1)

	info, err := os.Stat(loc.Path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "steamcmd.sh should be executable")

	again, err := f.prov.EnsureInstalled(context.Background(), profile)
	require.NoError(t, err)
	assert.Len(t, f.downloads, 1, "second run must not reinstall")
	assert.Equal(t, loc.Path, again.Path)
	assert.Equal(t, SourceManifest, again.Source)

	recorded, err := f.prov.Lookup()
	require.NoError(t, err)
	assert.Equal(t, loc.Path, recorded.Path)
}

func TestWindowsZip(t *testing.T) {
	f := newFixture(t, "windows")
	loc, err := f.prov.EnsureInstalled(context.Background(), system.Profile{OS: "windows", Family: system.FamilyWindows})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.prov.Dir, "steamcmd.exe"), loc.Path)
	require.Len(t, f.downloads, 1)
	assert.True(t, strings.HasSuffix(f.downloads[0], "steamcmd.zip"))
}

func TestVerificationFailureIsProvisionError(t *testing.T) {
	f := newFixture(t, "linux")
	f.run.Handler = func(call runnertest.Call) (runner.RunResult, error) {
		if len(call.Args) == 1 && call.Args[0] == "+quit" {
			return runner.RunResult{ExitCode: 8}, nil
		}
		return runner.RunResult{}, nil
	}
	_, err := f.prov.EnsureInstalled(context.Background(), profileFor(system.FamilyLinuxGeneric, ""))
	var perr *ProvisionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StrategyTarball, perr.Strategy)
	assert.Equal(t, 8, perr.ExitCode)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "linux")
	profile := profileFor(system.FamilyDebian, "ubuntu", system.Apt)

	st := f.prov.Status(profile)
	assert.False(t, st.Present)
	assert.NotEmpty(t, st.Hints)

	f.installSystemBinary(t)
	st = f.prov.Status(profile)
	assert.True(t, st.Present)
	assert.Equal(t, f.sysBinary, st.Path)
	assert.Equal(t, SourceSystem, st.Source)
}

func TestSourcesHaveComponent(t *testing.T) {
	cases := []struct {
		name string
		data string
		want bool
	}{
		{name: "one-line", data: "deb http://deb.debian.org/debian bookworm main contrib non-free\n", want: true},
		{name: "options", data: "deb [arch=amd64 signed-by=/k.gpg] http://deb.debian.org/debian bookworm main non-free\n", want: true},
		{name: "commented", data: "# deb http://deb.debian.org/debian bookworm non-free\n", want: false},
		{name: "suite only", data: "deb http://deb.debian.org/non-free bookworm main\n", want: false},
		{name: "deb822", data: "Components: main non-free-firmware non-free\n", want: true},
		{name: "firmware only", data: "Components: main non-free-firmware\n", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sourcesHaveComponent(tc.data, "non-free"))
		})
	}
}
