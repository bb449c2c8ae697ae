package mods

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vilehvh/internal/archive/archivetest"
	"vilehvh/internal/config"
	"vilehvh/internal/paths"
	"vilehvh/internal/progress"
)

type modServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newModServer(t *testing.T) *modServer {
	t.Helper()
	metamod := archivetest.TarGz(t, map[string]string{
		"addons/metamod.vdf":                   `"Plugin" { "file" "addons/metamod/bin/server" }`,
		"addons/metamod/bin/linux32/server.so": "elf32",
		"addons/metamod/bin/linux64/server.so": "elf64",
	})
	sourcemod := archivetest.TarGz(t, map[string]string{
		"addons/metamod/sourcemod.vdf":           `"Metamod Plugin" {}`,
		"addons/sourcemod/plugins/basechat.smx":  "smx",
		"addons/sourcemod/configs/core.cfg":      "cfg",
		"addons/sourcemod/translations/core.txt": "txt",
	})
	srv := &modServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.hits.Add(1)
		switch r.URL.Path {
		case "/mmsource-linux.tar.gz":
			_, _ = w.Write(metamod)
		case "/sourcemod-linux.tar.gz":
			_, _ = w.Write(sourcemod)
		case "/sourcemod-windows.zip":
			_, _ = w.Write(archivetest.Zip(t, map[string]string{"addons/metamod/sourcemod.vdf": "zip"}))
		case "/corrupt.tar.gz":
			_, _ = w.Write([]byte("not gzip"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *modServer) specs() []Spec {
	cfg := config.Default().Mods
	cfg.Metamod.LinuxURL = s.URL + "/mmsource-linux.tar.gz"
	cfg.Sourcemod.LinuxURL = s.URL + "/sourcemod-linux.tar.gz"
	return DefaultSpecs(cfg, "linux")
}

func newInstaller(t *testing.T) (*Installer, *progress.Recorder) {
	t.Helper()
	target, err := paths.NewInstallTarget(filepath.Join(t.TempDir(), "server"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(target.GameDir, 0o755))
	rec := &progress.Recorder{}
	return &Installer{Target: target, Logger: zerolog.Nop(), Reporter: rec}, rec
}

func TestInstallAllInstallsMetamodThenSourcemod(t *testing.T) {
	srv := newModServer(t)
	inst, rec := newInstaller(t)
	specs := srv.specs()

	require.NoError(t, inst.InstallAll(context.Background(), specs))
	for _, spec := range specs {
		assert.True(t, inst.IsInstalled(spec), spec.Name)
	}
	_, err := os.Stat(filepath.Join(inst.Target.PluginsDir, "basechat.smx"))
	assert.NoError(t, err)

	link, err := os.Readlink(filepath.Join(inst.Target.MetamodDir, "bin", "linux64"))
	require.NoError(t, err)
	assert.Equal(t, "linux32", link)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "sourcemod", last.Name)
	assert.Equal(t, progress.PhaseComplete, last.Phase)
}

func TestReinstallIsNoOp(t *testing.T) {
	srv := newModServer(t)
	inst, _ := newInstaller(t)
	spec := srv.specs()[0]

	require.NoError(t, inst.Install(context.Background(), spec))
	marker := filepath.Join(inst.Target.GameDir, spec.Marker)
	before, err := os.ReadFile(marker)
	require.NoError(t, err)
	hits := srv.hits.Load()

	require.NoError(t, inst.Install(context.Background(), spec))
	after, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, hits, srv.hits.Load(), "second install must not download")

	inst.Force = true
	require.NoError(t, inst.Install(context.Background(), spec))
	assert.Equal(t, hits+1, srv.hits.Load())
}

func TestFailedExtractIsReinstalled(t *testing.T) {
	payload := make([]byte, 200000)
	_, _ = rand.New(rand.NewSource(1)).Read(payload)
	full := archivetest.TarGz(t, map[string]string{
		"addons/metamod.vdf":                   "marker",
		"addons/metamod/bin/linux32/server.so": string(payload),
	})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			_, _ = w.Write(full[:len(full)/2])
			return
		}
		_, _ = w.Write(full)
	}))
	t.Cleanup(srv.Close)

	inst, _ := newInstaller(t)
	spec := Spec{Name: "metamod", URL: srv.URL + "/mmsource-linux.tar.gz", Marker: "addons/metamod.vdf"}

	err := inst.Install(context.Background(), spec)
	require.ErrorIs(t, err, ErrExtractFailed)
	assert.False(t, inst.IsInstalled(spec), "marker must not survive a failed extract")

	require.NoError(t, inst.Install(context.Background(), spec))
	assert.EqualValues(t, 2, hits.Load())
	info, err := os.Stat(filepath.Join(inst.Target.MetamodDir, "bin", "linux32", "server.so"))
	require.NoError(t, err)
	assert.EqualValues(t, 200000, info.Size())
}

func TestSourcemodRequiresMetamod(t *testing.T) {
	srv := newModServer(t)
	inst, _ := newInstaller(t)

	err := inst.Install(context.Background(), srv.specs()[1])
	require.ErrorIs(t, err, ErrMissingPrerequisite)
	assert.Zero(t, srv.hits.Load())
}

func TestInstallNeedsDeployedServer(t *testing.T) {
	srv := newModServer(t)
	target, err := paths.NewInstallTarget(filepath.Join(t.TempDir(), "empty"))
	require.NoError(t, err)
	inst := &Installer{Target: target, Logger: zerolog.Nop()}

	err = inst.Install(context.Background(), srv.specs()[0])
	require.ErrorIs(t, err, ErrMissingPrerequisite)
}

func TestInstallErrorKinds(t *testing.T) {
	srv := newModServer(t)
	cases := []struct {
		name string
		spec Spec
		kind error
	}{
		{name: "download", spec: Spec{Name: "x", URL: srv.URL + "/missing.tar.gz", Marker: "addons/x.vdf"}, kind: ErrDownloadFailed},
		{name: "extract", spec: Spec{Name: "x", URL: srv.URL + "/corrupt.tar.gz", Marker: "addons/x.vdf"}, kind: ErrExtractFailed},
		{name: "verify", spec: Spec{Name: "x", URL: srv.URL + "/mmsource-linux.tar.gz", Marker: "addons/x.vdf"}, kind: ErrVerificationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst, rec := newInstaller(t)
			err := inst.Install(context.Background(), tc.spec)
			require.ErrorIs(t, err, tc.kind)

			var ierr *InstallError
			require.True(t, errors.As(err, &ierr))
			assert.Equal(t, "x", ierr.Mod)
			for _, other := range []error{ErrDownloadFailed, ErrExtractFailed, ErrVerificationFailed} {
				if other != tc.kind {
					assert.False(t, errors.Is(err, other))
				}
			}
			last, _ := rec.Last()
			assert.Equal(t, progress.PhaseFailed, last.Phase)
		})
	}
}

func TestWindowsSpecsUseZip(t *testing.T) {
	srv := newModServer(t)
	inst, _ := newInstaller(t)
	cfg := config.Default().Mods
	cfg.Sourcemod.WindowsURL = srv.URL + "/sourcemod-windows.zip"
	specs := DefaultSpecs(cfg, "windows")
	require.Len(t, specs, 2)
	assert.Nil(t, specs[0].PostInstall)

	require.NoError(t, os.MkdirAll(filepath.Join(inst.Target.GameDir, "addons"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inst.Target.GameDir, "addons", "metamod.vdf"), []byte("x"), 0o644))
	require.NoError(t, inst.Install(context.Background(), specs[1]))
}

func TestFixMetamodArchSkipsWithoutLinux32(t *testing.T) {
	target, err := paths.NewInstallTarget(t.TempDir())
	require.NoError(t, err)
	linux64 := filepath.Join(target.MetamodDir, "bin", "linux64")
	require.NoError(t, os.MkdirAll(linux64, 0o755))

	require.NoError(t, FixMetamodArch(target))
	info, err := os.Lstat(linux64)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
