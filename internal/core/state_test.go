package core_test

import (
	"testing"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *core.Store {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, database.Close())
	})
	return core.NewStore(database, t.TempDir())
}

func TestStore_InstalledModsCarryEnabledFlag(t *testing.T) {
	s := newTestStore(t)
	a := domain.ModID{Owner: "a", Name: "one"}
	b := domain.ModID{Owner: "b", Name: "two"}
	require.NoError(t, s.SetInstalledMod(50, a, "1.0.0"))
	require.NoError(t, s.SetInstalledMod(50, b, "2.0.0"))

	changed, err := s.SetDisabled(domain.ModID{Owner: "B", Name: "TWO"}, true)
	require.NoError(t, err)
	assert.True(t, changed)

	mods, err := s.InstalledMods(50)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.True(t, mods[0].Enabled)
	assert.False(t, mods[1].Enabled)

	changed, err = s.SetDisabled(b, true)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStore_ClearVersion(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetInstalledMod(50, domain.ModID{Owner: "a", Name: "b"}, "1.0.0"))
	require.NoError(t, s.MarkGameFiles(50, "123"))
	require.NoError(t, s.MarkGameFiles(49, "122"))

	require.NoError(t, s.ClearVersion(50))

	mods, err := s.InstalledMods(50)
	require.NoError(t, err)
	assert.Empty(t, mods)
	_, ok, err := s.GameFiles(50)
	require.NoError(t, err)
	assert.False(t, ok)

	versions, err := s.InstalledVersions()
	require.NoError(t, err)
	assert.Equal(t, []int{49}, versions)
}

func TestStore_DefaultDisabledSet(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.IsDisabled(domain.ModID{Owner: "SlushyRH", Name: "FreeeeeeMoooooons"})
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := s.Disabled()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestStore_InstalledModAndRemove(t *testing.T) {
	s := newTestStore(t)
	id := domain.ModID{Owner: "a", Name: "b"}

	mod, err := s.InstalledMod(50, id)
	require.NoError(t, err)
	assert.Nil(t, mod)

	require.NoError(t, s.SetInstalledMod(50, id, "1.0.0"))
	_, err = s.SetDisabled(id, true)
	require.NoError(t, err)

	mod, err = s.InstalledMod(50, id)
	require.NoError(t, err)
	require.NotNil(t, mod)
	assert.Equal(t, "1.0.0", mod.Version)
	assert.False(t, mod.Enabled)

	require.NoError(t, s.RemoveInstalledMod(50, id))
	assert.ErrorIs(t, s.RemoveInstalledMod(50, id), domain.ErrNotInstalled)
}
