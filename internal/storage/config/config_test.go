package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultValues(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, domain.LinkSymlink, cfg.LinkMethod())
	assert.Equal(t, "lethal-company", cfg.Community)
	assert.Equal(t, 8*time.Second, cfg.LoginPromptIdle)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
config_link_method: hardlink
community: content-warning
login_timeout: 2m
link_config_on_install: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(content), 0644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, domain.LinkHardlink, cfg.LinkMethod())
	assert.Equal(t, "content-warning", cfg.Community)
	assert.Equal(t, 2*time.Minute, cfg.LoginTimeout)
	assert.False(t, cfg.LinkConfigOnInstall)
	// untouched keys keep defaults
	assert.Equal(t, "https://thunderstore.io", cfg.RegistryURL)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("HQL_COMMUNITY", "from-env")
	t.Setenv("HQL_INDEX_CACHE_TTL", "5m")

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Community)
	assert.Equal(t, 5*time.Minute, cfg.IndexCacheTTL)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("community: [unclosed"), 0644))

	_, err := config.Load(dir)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	cfg := config.Default()
	cfg.ConfigLinkMethod = domain.LinkCopy.String()
	cfg.DownloadStallTimeout = 30 * time.Second
	require.NoError(t, cfg.Save(dir))

	loaded, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
