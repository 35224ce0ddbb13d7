package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlugin(t *testing.T, pluginsDir, folder, version string, files ...string) string {
	t.Helper()
	dir := filepath.Join(pluginsDir, folder)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	if version != "" {
		manifest := `{"name":"x","version_number":"` + version + `"}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0644))
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte(f), 0644))
	}
	return dir
}

func TestSetFilesEnabled_RoundTrip(t *testing.T) {
	dir := makePlugin(t, t.TempDir(), "a-b", "1.0.0", "Mod.dll", "sub/data.bin")

	require.NoError(t, core.SetFilesEnabled(dir, false))
	assert.FileExists(t, filepath.Join(dir, "Mod.dll.old"))
	assert.FileExists(t, filepath.Join(dir, "sub", "data.bin.old"))
	assert.FileExists(t, filepath.Join(dir, "manifest.json.old"))
	assert.NoFileExists(t, filepath.Join(dir, "Mod.dll"))

	// disabling twice does not stack suffixes
	require.NoError(t, core.SetFilesEnabled(dir, false))
	assert.NoFileExists(t, filepath.Join(dir, "Mod.dll.old.old"))

	require.NoError(t, core.SetFilesEnabled(dir, true))
	assert.FileExists(t, filepath.Join(dir, "Mod.dll"))
	assert.FileExists(t, filepath.Join(dir, "manifest.json"))
}

func TestSetFilesEnabled_DoesNotOverwrite(t *testing.T) {
	dir := makePlugin(t, t.TempDir(), "a-b", "", "Mod.dll", "Mod.dll.old")

	require.NoError(t, core.SetFilesEnabled(dir, true))

	data, err := os.ReadFile(filepath.Join(dir, "Mod.dll"))
	require.NoError(t, err)
	assert.Equal(t, "Mod.dll", string(data))
	assert.FileExists(t, filepath.Join(dir, "Mod.dll.old"))
}

func TestSetFilesEnabled_MissingDir(t *testing.T) {
	assert.NoError(t, core.SetFilesEnabled(filepath.Join(t.TempDir(), "missing"), false))
}

func TestFindPluginDir_CaseInsensitive(t *testing.T) {
	plugins := t.TempDir()
	want := makePlugin(t, plugins, "HQHQTeam-HQoL", "1.0.0")

	got, ok := core.FindPluginDir(plugins, domain.ModID{Owner: "hqhqteam", Name: "HQOL"})
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = core.FindPluginDir(plugins, domain.ModID{Owner: "other", Name: "mod"})
	assert.False(t, ok)
}

func TestScanPlugins(t *testing.T) {
	plugins := t.TempDir()
	makePlugin(t, plugins, "notnotnotswipez-MoreCompany", "1.7.4", "MoreCompany.dll")
	disabled := makePlugin(t, plugins, "x753-More_Suits", "1.4.3")
	require.NoError(t, core.SetFilesEnabled(disabled, false))
	makePlugin(t, plugins, "nomanifest-Mod", "")
	makePlugin(t, plugins, "NoDash", "1.0.0")
	require.NoError(t, os.WriteFile(filepath.Join(plugins, "loose.dll"), nil, 0644))

	mods, err := core.ScanPlugins(plugins)
	require.NoError(t, err)
	require.Len(t, mods, 2)

	assert.Equal(t, domain.ModID{Owner: "notnotnotswipez", Name: "MoreCompany"}, mods[0].ID)
	assert.Equal(t, "1.7.4", mods[0].Version)
	assert.True(t, mods[0].Enabled)

	assert.Equal(t, "More_Suits", mods[1].ID.Name)
	assert.Equal(t, "1.4.3", mods[1].Version)
	assert.False(t, mods[1].Enabled)
}

func TestReadPluginManifest_BOM(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("\xef\xbb\xbf{\"version_number\":\"2.0.0\"}"), 0644))

	m, enabled, err := core.ReadPluginManifest(dir)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "2.0.0", m.VersionNumber)
}

func TestPluginAssemblies(t *testing.T) {
	dir := makePlugin(t, t.TempDir(), "a-b", "1.0.0", "LateCompany.dll", "readme.md")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "Helper.DLL.old"), nil, 0644))

	assert.ElementsMatch(t, []string{"LateCompany", "Helper"}, core.PluginAssemblies(dir))
}
