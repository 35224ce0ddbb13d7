package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hq-launcher/hql/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempDirs(t *testing.T) {
	t.Helper()
	configDir = t.TempDir()
	dataDir = t.TempDir()
	configFile = ""
	verbose = false
	t.Cleanup(func() {
		configDir, dataDir, configFile = "", "", ""
	})
}

func TestInitService_UsesFlagDirectories(t *testing.T) {
	useTempDirs(t)

	svc, err := initService()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, svc.Close())
	})

	assert.Equal(t, dataDir, svc.Layout().DataDir)
	assert.Equal(t, "lethal-company", svc.Config().Community)
	assert.FileExists(t, filepath.Join(dataDir, "hql.db"))
}

func TestInitService_ConfigFile(t *testing.T) {
	useTempDirs(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("community: test-community\nlog_level: debug\n"), 0644))
	configFile = path

	svc, err := initService()
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	assert.Equal(t, "test-community", svc.Config().Community)
}

func TestInitService_RejectsRelativeConfigFile(t *testing.T) {
	useTempDirs(t)
	configFile = "custom.yaml"

	_, err := initService()
	assert.Error(t, err)
}

func TestNewLogger_Level(t *testing.T) {
	useTempDirs(t)
	cfg, err := getServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, log.InfoLevel, newLogger(cfg).GetLevel())

	verbose = true
	assert.Equal(t, log.DebugLevel, newLogger(cfg).GetLevel())
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "73", want: 73},
		{in: "v56", want: 56},
		{in: " V50 ", want: 50},
		{in: "v", wantErr: true},
		{in: "0", wantErr: true},
		{in: "latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseModID(t *testing.T) {
	id, err := parseModID("giosuel-Imperium")
	require.NoError(t, err)
	assert.Equal(t, domain.ModID{Owner: "giosuel", Name: "Imperium"}, id)

	id, err = parseModID("notnotnotswipez-MoreCompany-1.7.4")
	require.NoError(t, err)
	assert.Equal(t, domain.ModID{Owner: "notnotnotswipez", Name: "MoreCompany"}, id)

	id, err = parseModID("Owner-2")
	require.NoError(t, err)
	assert.Equal(t, domain.ModID{Owner: "Owner", Name: "2"}, id, "a numeric name is not a version")

	_, err = parseModID("Imperium")
	assert.Error(t, err)
}
