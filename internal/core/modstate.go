package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hq-launcher/hql/internal/domain"
)

// DisabledSuffix is appended to every file of a disabled mod
const DisabledSuffix = ".old"

// PluginManifest is the manifest.json shipped in every registry package
type PluginManifest struct {
	Name          string   `json:"name"`
	VersionNumber string   `json:"version_number"`
	WebsiteURL    string   `json:"website_url"`
	Description   string   `json:"description"`
	Dependencies  []string `json:"dependencies"`
}

// FindPluginDir locates the "<Owner>-<Name>" folder of a mod, ignoring case
func FindPluginDir(pluginsDir string, id domain.ModID) (string, bool) {
	exact := filepath.Join(pluginsDir, id.Owner+"-"+id.Name)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, true
	}

	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		return "", false
	}
	want := id.Key()
	for _, e := range entries {
		if e.IsDir() && strings.ToLower(e.Name()) == want {
			return filepath.Join(pluginsDir, e.Name()), true
		}
	}
	return "", false
}

// SetFilesEnabled renames every file under dir: disabling appends ".old", enabling strips it.
// A rename that would overwrite an existing file is skipped.
func SetFilesEnabled(dir string, enabled bool) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	var renames [][2]string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		isOld := strings.HasSuffix(strings.ToLower(name), DisabledSuffix)

		var target string
		switch {
		case enabled && isOld:
			target = filepath.Join(filepath.Dir(path), name[:len(name)-len(DisabledSuffix)])
		case !enabled && !isOld:
			target = path + DisabledSuffix
		default:
			return nil
		}
		renames = append(renames, [2]string{path, target})
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}

	for _, r := range renames {
		if _, err := os.Lstat(r[1]); err == nil {
			continue
		}
		if err := os.Rename(r[0], r[1]); err != nil {
			return fmt.Errorf("renaming %s: %w", filepath.Base(r[0]), err)
		}
	}
	return nil
}

// ReadPluginManifest reads manifest.json, or manifest.json.old for a disabled mod.
// The second result reports whether the mod is enabled.
func ReadPluginManifest(dir string) (*PluginManifest, bool, error) {
	enabled := true
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if errors.Is(err, fs.ErrNotExist) {
		enabled = false
		data, err = os.ReadFile(filepath.Join(dir, "manifest.json"+DisabledSuffix))
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading manifest: %w", err)
	}

	var m PluginManifest
	if err := json.Unmarshal(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), &m); err != nil {
		return nil, false, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, enabled, nil
}

// ScanPlugins lists the mods found in a plugins folder. Folders that are not
// "<Owner>-<Name>" or lack a readable manifest are skipped.
func ScanPlugins(pluginsDir string) ([]domain.InstalledMod, error) {
	entries, err := os.ReadDir(pluginsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading plugins: %w", err)
	}

	var mods []domain.InstalledMod
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := domain.ParseModID(e.Name())
		if err != nil {
			continue
		}
		m, enabled, err := ReadPluginManifest(filepath.Join(pluginsDir, e.Name()))
		if err != nil || m.VersionNumber == "" {
			continue
		}
		mods = append(mods, domain.InstalledMod{ID: id, Version: m.VersionNumber, Enabled: enabled})
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID.Key() < mods[j].ID.Key() })
	return mods, nil
}

// PluginAssemblies returns the base names of the .dll files of a mod
func PluginAssemblies(dir string) []string {
	var names []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), DisabledSuffix)
		if strings.EqualFold(filepath.Ext(name), ".dll") {
			names = append(names, strings.TrimSuffix(name, filepath.Ext(name)))
		}
		return nil
	})
	return names
}
