package cfgfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hq-launcher/hql/internal/cfgfile"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moreCompanyCfg = `## Settings file was created by plugin MoreCompany v1.7.2
## Plugin GUID: me.swipez.melonloader.morecompany

[General]

## Max players
# Setting type: Int32
# Default value: 32
Player Count = 32

Cosmetics = true
`

func writeCfg(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestList(t *testing.T) {
	root := t.TempDir()
	writeCfg(t, root, "b.cfg", "")
	writeCfg(t, root, "a/z.cfg", "")
	s := cfgfile.New(root)

	files, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/z.cfg", "b.cfg"}, files)

	missing, err := cfgfile.New(filepath.Join(root, "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestList_FollowsLinkedRoot(t *testing.T) {
	shared := t.TempDir()
	writeCfg(t, shared, "a.cfg", "")
	link := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.Symlink(shared, link))

	files, err := cfgfile.New(link).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cfg"}, files)
}

func TestListForMod_UsesPluginHeader(t *testing.T) {
	root := t.TempDir()
	writeCfg(t, root, "me.swipez.melonloader.morecompany.cfg", moreCompanyCfg)
	writeCfg(t, root, "com.other.cfg", "## Settings file was created by plugin LateCompany v1.0.0\n")
	writeCfg(t, root, "notes.txt", "## Settings file was created by plugin MoreCompany v1\n")
	s := cfgfile.New(root)

	files, err := s.ListForMod(domain.ModID{Owner: "notnotnotswipez", Name: "MoreCompany"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"me.swipez.melonloader.morecompany.cfg"}, files)

	files, err = s.ListForMod(domain.ModID{Owner: "anon", Name: "Late_Company"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.other.cfg"}, files)

	files, err = s.ListForMod(domain.ModID{Owner: "x", Name: "Bundle"}, []string{"LateCompany"})
	require.NoError(t, err)
	assert.Equal(t, []string{"com.other.cfg"}, files)
}

func TestPluginName(t *testing.T) {
	root := t.TempDir()
	writeCfg(t, root, "x.cfg", moreCompanyCfg)

	name, err := cfgfile.PluginName(filepath.Join(root, "x.cfg"))
	require.NoError(t, err)
	assert.Equal(t, "MoreCompany", name)
}

func TestSetEntry_UpdatesExisting(t *testing.T) {
	root := t.TempDir()
	writeCfg(t, root, "mc.cfg", moreCompanyCfg)
	s := cfgfile.New(root)

	require.NoError(t, s.SetEntry("mc.cfg", domain.ConfigEdit{Section: "General", Key: "Player Count", Value: "16"}))

	v, ok, err := s.Get("mc.cfg", "General", "Player Count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "16", v)

	v, ok, err = s.Get("mc.cfg", "General", "Cosmetics")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	data, err := os.ReadFile(filepath.Join(root, "mc.cfg"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Player Count = 16")
	assert.Contains(t, string(data), "Default value: 32")
}

func TestSetEntry_CreatesFile(t *testing.T) {
	root := t.TempDir()
	s := cfgfile.New(root)

	require.NoError(t, s.SetEntry("new/dir/a.cfg", domain.ConfigEdit{Section: "Main", Key: "On", Value: "false"}))

	v, ok, err := s.Get("new/dir/a.cfg", "Main", "On")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", v)

	_, ok, err = s.Get("new/dir/a.cfg", "Main", "Missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPath_RejectsEscapes(t *testing.T) {
	s := cfgfile.New(t.TempDir())

	for _, rel := range []string{"", "..", "../x.cfg", "/etc/passwd", "a/../../x"} {
		_, err := s.Path(rel)
		assert.ErrorIs(t, err, cfgfile.ErrInvalidPath, rel)
	}

	p, err := s.Path("a\\b.cfg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root, "a", "b.cfg"), p)
}
