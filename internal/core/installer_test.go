package core_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type installerFixture struct {
	installer *core.Installer
	layout    core.Layout
	server    *packageServer
	cache     *cache.Cache
}

func newInstallerFixture(t *testing.T) installerFixture {
	t.Helper()
	layout := core.Layout{DataDir: t.TempDir()}
	c := cache.New(layout.CacheDir())
	ps := newPackageServer(t)
	return installerFixture{
		installer: core.NewInstaller(c, core.NewDownloader(nil), layout, nil),
		layout:    layout,
		server:    ps,
		cache:     c,
	}
}

func (f installerFixture) step(owner, name, version string, loader bool) core.PlanStep {
	return core.PlanStep{
		ID:      domain.ModID{Owner: owner, Name: name},
		Version: version,
		Loader:  loader,
		URL:     f.server.URL + "/package/download/" + owner + "/" + name + "/" + version + "/",
	}
}

func TestInstaller_InstallPlugin(t *testing.T) {
	f := newInstallerFixture(t)
	f.server.put("notnotnotswipez", "MoreCompany", "1.7.4", buildZip(t, map[string]string{
		"manifest.json":                   `{"version_number":"1.7.4"}`,
		"BepInEx/plugins/MoreCompany.dll": "dll",
		"icon.png":                        "png",
	}))

	var last core.StepProgress
	step := f.step("notnotnotswipez", "MoreCompany", "1.7.4", false)
	err := f.installer.Install(context.Background(), 73, step, func(p core.StepProgress) { last = p })
	require.NoError(t, err)

	dir := f.layout.PluginDir(73, "notnotnotswipez", "MoreCompany")
	assert.FileExists(t, filepath.Join(dir, "MoreCompany.dll"))
	assert.FileExists(t, filepath.Join(dir, "manifest.json"))
	assert.Equal(t, 1.0, last.Fraction)
	assert.Positive(t, last.BytesTotal)
	assert.True(t, f.installer.IsInstalled(73, domain.ModID{Owner: "NotNotNotSwipez", Name: "morecompany"}))
	assert.True(t, f.cache.HasArchive(step.ID, "1.7.4"))
}

func TestInstaller_UsesCache(t *testing.T) {
	f := newInstallerFixture(t)
	f.server.put("a", "B", "1.0.0", buildZip(t, map[string]string{"B.dll": "x"}))
	step := f.step("a", "B", "1.0.0", false)

	require.NoError(t, f.installer.Install(context.Background(), 56, step, nil))
	require.NoError(t, f.installer.Install(context.Background(), 73, step, nil))

	assert.Equal(t, 1, f.server.hitCount("a", "B", "1.0.0"))
	assert.FileExists(t, filepath.Join(f.layout.PluginDir(73, "a", "B"), "B.dll"))
}

func TestInstaller_TamperedCacheIsRefetched(t *testing.T) {
	f := newInstallerFixture(t)
	f.server.put("a", "B", "1.0.0", buildZip(t, map[string]string{"B.dll": "x"}))
	step := f.step("a", "B", "1.0.0", false)
	require.NoError(t, f.installer.Install(context.Background(), 56, step, nil))

	intact, err := f.cache.VerifyArchive(step.ID, "1.0.0")
	require.NoError(t, err)
	assert.True(t, intact)

	// still a valid zip, but not the one that was downloaded
	other := buildZip(t, map[string]string{"B.dll": "tampered"})
	require.NoError(t, os.WriteFile(f.cache.ArchivePath(step.ID, "1.0.0"), other, 0644))

	require.NoError(t, f.installer.Install(context.Background(), 73, step, nil))
	assert.Equal(t, 2, f.server.hitCount("a", "B", "1.0.0"))
	data, err := os.ReadFile(filepath.Join(f.layout.PluginDir(73, "a", "B"), "B.dll"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestInstaller_ReplacesExistingFolder(t *testing.T) {
	f := newInstallerFixture(t)
	f.server.put("a", "B", "1.0.0", buildZip(t, map[string]string{"Old.dll": "x"}))
	f.server.put("a", "B", "2.0.0", buildZip(t, map[string]string{"New.dll": "y"}))

	require.NoError(t, f.installer.Install(context.Background(), 73, f.step("a", "B", "1.0.0", false), nil))
	require.NoError(t, f.installer.Install(context.Background(), 73, f.step("a", "B", "2.0.0", false), nil))

	dir := f.layout.PluginDir(73, "a", "B")
	assert.NoFileExists(t, filepath.Join(dir, "Old.dll"))
	assert.FileExists(t, filepath.Join(dir, "New.dll"))
}

func TestInstaller_InstallLoader(t *testing.T) {
	f := newInstallerFixture(t)
	f.server.put("BepInEx", "BepInExPack", "5.4.2304", buildZip(t, map[string]string{
		"manifest.json":                  "{}",
		"BepInExPack/winhttp.dll":        "w",
		"BepInExPack/BepInEx/core/a.dll": "a",
	}))

	err := f.installer.Install(context.Background(), 73, f.step("BepInEx", "BepInExPack", "5.4.2304", true), nil)
	require.NoError(t, err)

	root := f.layout.VersionDir(73)
	assert.FileExists(t, filepath.Join(root, "winhttp.dll"))
	assert.FileExists(t, filepath.Join(root, "BepInEx", "core", "a.dll"))
	assert.NoFileExists(t, filepath.Join(root, "manifest.json"))
}

func TestInstaller_RejectsNonZip(t *testing.T) {
	f := newInstallerFixture(t)
	f.server.put("a", "B", "1.0.0", []byte("<html>not found</html>"))
	step := f.step("a", "B", "1.0.0", false)

	err := f.installer.Install(context.Background(), 73, step, nil)
	require.Error(t, err)
	assert.False(t, f.cache.HasArchive(step.ID, "1.0.0"))
	assert.False(t, f.installer.IsInstalled(73, step.ID))
}

func TestInstaller_MissingPackage(t *testing.T) {
	f := newInstallerFixture(t)

	err := f.installer.Install(context.Background(), 73, f.step("a", "Gone", "1.0.0", false), nil)
	assert.Error(t, err)
}

func TestInstaller_Uninstall(t *testing.T) {
	f := newInstallerFixture(t)
	id := domain.ModID{Owner: "a", Name: "B"}
	dir := f.layout.PluginDir(73, "A", "b")
	require.NoError(t, os.MkdirAll(dir, 0755))

	require.NoError(t, f.installer.Uninstall(73, id))
	assert.NoDirExists(t, dir)

	// missing is not an error
	assert.NoError(t, f.installer.Uninstall(73, id))
}
