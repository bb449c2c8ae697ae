package plugins

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vilehvh/internal/archive/archivetest"
	"vilehvh/internal/config"
	"vilehvh/internal/paths"
	"vilehvh/internal/runner"
	"vilehvh/internal/runner/runnertest"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	target, err := paths.NewInstallTarget(t.TempDir())
	require.NoError(t, err)
	m := NewManager(target, config.Default().Plugins, zerolog.Nop())
	m.Runner = &runnertest.Runner{}
	return m
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

var bundleFiles = map[string]string{
	"addons/sourcemod/plugins/hvh.smx":              "bin",
	"addons/sourcemod/scripting/hvh.sp":             "src",
	"addons/sourcemod/configs/hvh.cfg":              "cfg",
	"addons/sourcemod/gamedata/hvh.games.txt":       "gd",
	"addons/sourcemod/translations/hvh.phrases.txt": "tr",
	"addons/sourcemod/extensions/hvh.ext.so":        "ext",
	"README.md":                                     "ignored",
}

func TestScanClassifiesFiles(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, bundleFiles)

	bundle, err := Scan(dir, "sourcemod")
	require.NoError(t, err)
	assert.Len(t, bundle.Files, 6)
	assert.Equal(t, map[Category]int{
		CategoryPlugin:      1,
		CategoryScript:      1,
		CategoryConfig:      1,
		CategoryGamedata:    1,
		CategoryTranslation: 1,
		CategoryOther:       1,
	}, bundle.ByCategory())
}

func TestInstallFromDirectoryMergesTree(t *testing.T) {
	m := newManager(t)
	writeTree(t, m.Target.SourcemodDir, map[string]string{
		"plugins/existing.smx": "keep",
		"configs/hvh.cfg":      "old",
	})
	src := t.TempDir()
	writeTree(t, src, bundleFiles)

	records, err := m.InstallFromDirectory(src)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Name: "existing", File: "existing.smx", Enabled: true},
		{Name: "hvh", File: "hvh.smx", Enabled: true},
	}, records)

	cfg, err := os.ReadFile(filepath.Join(m.Target.ConfigsDir, "hvh.cfg"))
	require.NoError(t, err)
	assert.Equal(t, "cfg", string(cfg))
	assert.FileExists(t, filepath.Join(m.Target.GamedataDir, "hvh.games.txt"))
	assert.FileExists(t, filepath.Join(m.Target.TranslationsDir, "hvh.phrases.txt"))
	assert.FileExists(t, filepath.Join(m.Target.SourcemodDir, "extensions", "hvh.ext.so"))
	assert.NoFileExists(t, filepath.Join(m.Target.SourcemodDir, "README.md"))
}

func TestInstallFromDirectoryUsesModloaderSubtree(t *testing.T) {
	m := newManager(t)
	m.Modloader = "amxmodx"
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"addons/amxmodx/plugins/hvh.smx":  "bin",
		"addons/amxmodx/configs/hvh.cfg": "cfg",
	})

	records, err := m.InstallFromDirectory(src)
	require.NoError(t, err)
	assert.Equal(t, []Record{{Name: "hvh", File: "hvh.smx", Enabled: true}}, records)

	_, err = os.Stat(filepath.Join(m.Target.AddonsDir, "amxmodx", "configs", "hvh.cfg"))
	assert.NoError(t, err)
	_, err = os.Stat(m.Target.SourcemodDir)
	assert.True(t, os.IsNotExist(err), "other modloaders must not touch the sourcemod tree")

	require.NoError(t, m.Disable("hvh"))
	_, err = os.Stat(filepath.Join(m.Target.AddonsDir, "amxmodx", "plugins", "hvh.smx.disabled"))
	assert.NoError(t, err)
}

func TestInstallFromDirectoryRejectsInvalidStructure(t *testing.T) {
	m := newManager(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"plugins/hvh.smx": "bin"})

	_, err := m.InstallFromDirectory(src)
	require.ErrorIs(t, err, ErrInvalidStructure)
	_, statErr := os.Stat(m.Target.PluginsDir)
	assert.True(t, os.IsNotExist(statErr), "nothing copied")
}

func TestInstallFromDirectoryCopyError(t *testing.T) {
	m := newManager(t)
	src := t.TempDir()
	writeTree(t, src, bundleFiles)
	// A file where the configs directory should be blocks the copy.
	writeTree(t, m.Target.SourcemodDir, map[string]string{"configs": "not a dir"})

	_, err := m.InstallFromDirectory(src)
	var copyErr *CopyError
	require.ErrorAs(t, err, &copyErr)
	assert.Equal(t, "configs/hvh.cfg", copyErr.Path)
}

func TestEnableDisableRemove(t *testing.T) {
	m := newManager(t)
	writeTree(t, m.Target.PluginsDir, map[string]string{"hvh.smx": "bin"})

	require.NoError(t, m.Disable("hvh"))
	require.NoError(t, m.Disable("hvh.smx"), "disabling twice is a no-op")
	assert.FileExists(t, filepath.Join(m.Target.PluginsDir, "hvh.smx.disabled"))
	assert.NoFileExists(t, filepath.Join(m.Target.PluginsDir, "hvh.smx"))

	records, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []Record{{Name: "hvh", File: "hvh.smx.disabled"}}, records)

	require.NoError(t, m.Enable("hvh.smx"))
	require.NoError(t, m.Enable("hvh"))
	assert.FileExists(t, filepath.Join(m.Target.PluginsDir, "hvh.smx"))

	require.NoError(t, m.Remove("hvh"))
	require.NoError(t, m.Remove("hvh"), "removing an absent plugin is a no-op")
	records, err = m.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEnableMissingPlugin(t *testing.T) {
	m := newManager(t)
	assert.ErrorIs(t, m.Enable("ghost"), ErrPluginNotFound)
	assert.ErrorIs(t, m.Disable("ghost"), ErrPluginNotFound)
}

func TestInvalidNames(t *testing.T) {
	m := newManager(t)
	for _, name := range []string{"", ".smx", "../escape", `a\b`} {
		assert.ErrorIs(t, m.Remove(name), ErrInvalidName, name)
	}
}

func TestListMissingDirectory(t *testing.T) {
	records, err := newManager(t).List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInstallFromSourceClonesRepositories(t *testing.T) {
	cases := map[string]string{
		"HvH-gg/plugin-name":                    "https://github.com/HvH-gg/plugin-name.git",
		"https://github.com/HvH-gg/plugin-name": "https://github.com/HvH-gg/plugin-name",
		"git@github.com:HvH-gg/plugin-name.git": "git@github.com:HvH-gg/plugin-name.git",
	}
	for source, want := range cases {
		t.Run(source, func(t *testing.T) {
			m := newManager(t)
			fake := &runnertest.Runner{Handler: func(call runnertest.Call) (runner.RunResult, error) {
				require.Equal(t, "git", call.Command)
				writeTree(t, call.Args[len(call.Args)-1], bundleFiles)
				return runner.RunResult{}, nil
			}}
			m.Runner = fake

			records, err := m.InstallFromSource(context.Background(), source)
			require.NoError(t, err)
			require.Len(t, fake.Calls, 1)
			assert.Equal(t, []string{"clone", "--depth", "1", want}, fake.Calls[0].Args[:4])
			assert.Equal(t, []Record{{Name: "hvh", File: "hvh.smx", Enabled: true}}, records)
		})
	}
}

func TestInstallFromSourceCloneFailure(t *testing.T) {
	m := newManager(t)
	m.Runner = &runnertest.Runner{Handler: func(runnertest.Call) (runner.RunResult, error) {
		return runner.RunResult{ExitCode: 128}, nil
	}}

	_, err := m.InstallFromSource(context.Background(), "HvH-gg/missing")
	require.Error(t, err)
	assert.Equal(t, 128, runner.ExitCode(err))
}

func TestInstallFromSourceDownloads(t *testing.T) {
	bundle := archivetest.Zip(t, bundleFiles)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release/hvh.zip":
			_, _ = w.Write(bundle)
		case "/release/solo.smx":
			_, _ = w.Write([]byte("solo"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := newManager(t)
	m.Client = srv.Client()

	records, err := m.InstallFromSource(context.Background(), srv.URL+"/release/hvh.zip")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = m.InstallFromSource(context.Background(), srv.URL+"/release/solo.smx")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = m.InstallFromSource(context.Background(), srv.URL+"/release/gone.zip")
	require.Error(t, err)
}

func TestInstallFromSourceLocalPaths(t *testing.T) {
	m := newManager(t)
	src := t.TempDir()
	writeTree(t, src, bundleFiles)
	writeTree(t, src, map[string]string{"loose/extra.smx": "x"})

	_, err := m.InstallFromSource(context.Background(), src)
	require.NoError(t, err)

	records, err := m.InstallFromSource(context.Background(), filepath.Join(src, "loose", "extra.smx"))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = m.InstallFromSource(context.Background(), filepath.Join(src, "nothing-here"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidStructure))
}
