package db_test

import (
	"path/filepath"
	"testing"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, database.Close())
	})
	return database
}

func TestNew_RunsMigrations(t *testing.T) {
	database := setupTestDB(t)

	var count int
	for _, table := range []string{"installed_mods", "game_files", "login_state"} {
		err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		assert.NoError(t, err, table)
	}

	var version int
	require.NoError(t, database.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 4, version)
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hql.db")

	database, err := db.New(path)
	require.NoError(t, err)
	require.NoError(t, database.MarkGameFilesComplete(45, "111"))
	require.NoError(t, database.Close())

	database, err = db.New(path)
	require.NoError(t, err)
	defer database.Close()

	manifest, ok, err := database.GameFilesManifest(45)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "111", manifest)
}

func TestInstalledMods_SaveAndGet(t *testing.T) {
	database := setupTestDB(t)
	lib := domain.ModID{Owner: "Evaisa", Name: "HookGenPatcher"}
	api := domain.ModID{Owner: "2018", Name: "LC_API"}

	require.NoError(t, database.SaveInstalledMod(50, lib, "0.0.5"))
	require.NoError(t, database.SaveInstalledMod(50, api, "3.4.5"))
	require.NoError(t, database.SaveInstalledMod(49, api, "3.0.0"))

	mods, err := database.GetInstalledMods(50)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, api, mods[0].ID)
	assert.Equal(t, "3.4.5", mods[0].Version)
	assert.True(t, mods[0].Enabled)
	assert.Equal(t, lib, mods[1].ID)

	mods, err = database.GetInstalledMods(49)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "3.0.0", mods[0].Version)
}

func TestInstalledMods_UpdateTracksPrevious(t *testing.T) {
	database := setupTestDB(t)
	id := domain.ModID{Owner: "x753", Name: "More_Suits"}

	require.NoError(t, database.SaveInstalledMod(50, id, "1.4.1"))
	require.NoError(t, database.SaveInstalledMod(50, id, "1.4.3"))

	mod, err := database.GetInstalledMod(50, id)
	require.NoError(t, err)
	require.NotNil(t, mod)
	assert.Equal(t, "1.4.3", mod.Version)
	assert.Equal(t, "1.4.1", mod.PreviousVersion)

	// Reinstalling the same version keeps the previous one
	require.NoError(t, database.SaveInstalledMod(50, id, "1.4.3"))
	mod, err = database.GetInstalledMod(50, id)
	require.NoError(t, err)
	assert.Equal(t, "1.4.1", mod.PreviousVersion)
}

func TestInstalledMods_KeyIsCaseInsensitive(t *testing.T) {
	database := setupTestDB(t)

	require.NoError(t, database.SaveInstalledMod(50, domain.ModID{Owner: "notnotnotswipez", Name: "MoreCompany"}, "1.7.2"))
	require.NoError(t, database.SaveInstalledMod(50, domain.ModID{Owner: "NotNotNotSwipez", Name: "morecompany"}, "1.7.4"))

	mods, err := database.GetInstalledMods(50)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "1.7.4", mods[0].Version)
}

func TestInstalledMods_GetMissing(t *testing.T) {
	database := setupTestDB(t)

	mod, err := database.GetInstalledMod(50, domain.ModID{Owner: "a", Name: "b"})
	require.NoError(t, err)
	assert.Nil(t, mod)
}

func TestInstalledMods_Delete(t *testing.T) {
	database := setupTestDB(t)
	id := domain.ModID{Owner: "a", Name: "b"}

	require.NoError(t, database.SaveInstalledMod(50, id, "1.0.0"))
	require.NoError(t, database.DeleteInstalledMod(50, id))

	err := database.DeleteInstalledMod(50, id)
	assert.ErrorIs(t, err, domain.ErrNotInstalled)
}

func TestInstalledMods_DeleteVersion(t *testing.T) {
	database := setupTestDB(t)

	require.NoError(t, database.SaveInstalledMod(50, domain.ModID{Owner: "a", Name: "b"}, "1.0.0"))
	require.NoError(t, database.SaveInstalledMod(50, domain.ModID{Owner: "c", Name: "d"}, "1.0.0"))
	require.NoError(t, database.SaveInstalledMod(45, domain.ModID{Owner: "a", Name: "b"}, "1.0.0"))

	require.NoError(t, database.DeleteInstalledMods(50))

	mods, err := database.GetInstalledMods(50)
	require.NoError(t, err)
	assert.Empty(t, mods)

	mods, err = database.GetInstalledMods(45)
	require.NoError(t, err)
	assert.Len(t, mods, 1)
}

func TestInstalledMods_Replace(t *testing.T) {
	database := setupTestDB(t)

	require.NoError(t, database.SaveInstalledMod(50, domain.ModID{Owner: "old", Name: "mod"}, "1.0.0"))
	err := database.ReplaceInstalledMods(50, []domain.InstalledMod{
		{ID: domain.ModID{Owner: "new", Name: "mod"}, Version: "2.0.0"},
	})
	require.NoError(t, err)

	mods, err := database.GetInstalledMods(50)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "new", mods[0].ID.Owner)
}

func TestGameFiles(t *testing.T) {
	database := setupTestDB(t)

	_, ok, err := database.GameFilesManifest(50)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, database.MarkGameFilesComplete(50, "222"))
	require.NoError(t, database.MarkGameFilesComplete(45, "111"))
	require.NoError(t, database.MarkGameFilesComplete(50, "333"))

	manifest, ok, err := database.GameFilesManifest(50)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "333", manifest)

	versions, err := database.InstalledVersions()
	require.NoError(t, err)
	assert.Equal(t, []int{45, 50}, versions)

	require.NoError(t, database.ClearGameFiles(50))
	versions, err = database.InstalledVersions()
	require.NoError(t, err)
	assert.Equal(t, []int{45}, versions)
}

func TestManifestRevision(t *testing.T) {
	database := setupTestDB(t)

	assert.Error(t, database.SetManifestRevision(50, 3), "no game files yet")

	require.NoError(t, database.MarkGameFilesComplete(50, "222"))
	revision, ok, err := database.ManifestRevision(50)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, revision)

	require.NoError(t, database.SetManifestRevision(50, 3))
	// a repeated completion keeps the applied revision
	require.NoError(t, database.MarkGameFilesComplete(50, "222"))
	revision, _, err = database.ManifestRevision(50)
	require.NoError(t, err)
	assert.Equal(t, 3, revision)

	_, ok, err = database.ManifestRevision(73)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginState(t *testing.T) {
	database := setupTestDB(t)

	state, err := database.LoginState()
	require.NoError(t, err)
	assert.False(t, state.LoggedIn)

	require.NoError(t, database.SaveLoginState(domain.LoginState{LoggedIn: true, Username: "gordon"}))
	state, err = database.LoginState()
	require.NoError(t, err)
	assert.Equal(t, domain.LoginState{LoggedIn: true, Username: "gordon"}, state)

	require.NoError(t, database.SaveLoginState(domain.LoginState{Username: "gordon"}))
	state, err = database.LoginState()
	require.NoError(t, err)
	assert.Equal(t, domain.LoginState{}, state)
}
