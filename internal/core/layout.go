package core

import (
	"fmt"
	"path/filepath"
)

// Layout resolves the on-disk locations under the data directory
type Layout struct {
	DataDir string
}

// VersionDir is the install directory of a game version
func (l Layout) VersionDir(version int) string {
	return filepath.Join(l.DataDir, "versions", fmt.Sprintf("v%d", version))
}

// PluginsDir holds one folder per installed mod
func (l Layout) PluginsDir(version int) string {
	return filepath.Join(l.VersionDir(version), "BepInEx", "plugins")
}

// PluginDir is the folder a mod package is extracted into
func (l Layout) PluginDir(version int, owner, name string) string {
	return filepath.Join(l.PluginsDir(version), owner+"-"+name)
}

// ConfigDir is a version's BepInEx config directory
func (l Layout) ConfigDir(version int) string {
	return filepath.Join(l.VersionDir(version), "BepInEx", "config")
}

// SharedConfigDir is the config directory shared by linked versions
func (l Layout) SharedConfigDir() string {
	return filepath.Join(l.DataDir, "config", "shared")
}

// LinkMarker records that a version's config directory is linked
func (l Layout) LinkMarker(version int) string {
	return filepath.Join(l.VersionDir(version), ".hql", "config-linked")
}

// DBPath is the sqlite database
func (l Layout) DBPath() string {
	return filepath.Join(l.DataDir, "hql.db")
}

// CacheDir holds the registry index and package archives
func (l Layout) CacheDir() string {
	return filepath.Join(l.DataDir, "cache")
}

// DepotDir is the depot tool's working directory
func (l Layout) DepotDir() string {
	return filepath.Join(l.DataDir, "depot")
}
