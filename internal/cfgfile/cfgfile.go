// Package cfgfile reads and edits the INI-style plugin config files under a config root.
package cfgfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hq-launcher/hql/internal/domain"

	"gopkg.in/ini.v1"
)

// ErrInvalidPath is returned for paths escaping the config root
var ErrInvalidPath = errors.New("invalid config path")

func init() {
	// Plugin configs are written as "Key = Value" without column alignment.
	ini.PrettyFormat = false
	ini.PrettyEqual = true
}

var loadOptions = ini.LoadOptions{
	Loose:                   true,
	IgnoreInlineComment:     true,
	SkipUnrecognizableLines: true,
	PreserveSurroundedQuote: true,
}

// Store works on the config files below Root
type Store struct {
	Root string
}

// New creates a store rooted at dir
func New(dir string) *Store {
	return &Store{Root: dir}
}

// Path returns the absolute path of a config-relative path
func (s *Store) Path(rel string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, rel)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

// List returns every config file as a sorted slash-separated relative path
func (s *Store) List() ([]string, error) {
	// a linked config directory is a symlink, which WalkDir would not enter
	root, err := filepath.EvalSymlinks(s.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing config files: %w", err)
	}

	var out []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing config files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// ListForMod returns the config files created by one of the mod's plugins. A file belongs
// to the mod when its "created by plugin" header names the mod or one of pluginNames
// (typically the assembly names found in the mod's plugin folder).
func (s *Store) ListForMod(id domain.ModID, pluginNames []string) ([]string, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	want := map[string]bool{squash(id.Name): true}
	for _, n := range pluginNames {
		want[squash(n)] = true
	}

	var out []string
	for _, rel := range all {
		if !strings.EqualFold(path.Ext(rel), ".cfg") {
			continue
		}
		p, err := s.Path(rel)
		if err != nil {
			continue
		}
		plugin, err := PluginName(p)
		if err != nil {
			return nil, err
		}
		if plugin != "" && want[squash(plugin)] {
			out = append(out, rel)
		}
	}
	return out, nil
}

// PluginName reads the "## Settings file was created by plugin X vN" header
func PluginName(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	const marker = "created by plugin "
	sc := bufio.NewScanner(f)
	for i := 0; i < 5 && sc.Scan(); i++ {
		line := sc.Text()
		idx := strings.Index(line, marker)
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[idx+len(marker):])
		if v := strings.LastIndex(name, " v"); v > 0 {
			name = name[:v]
		}
		return name, nil
	}
	return "", sc.Err()
}

// Read loads a config file; a missing file yields an empty document
func (s *Store) Read(rel string) (*ini.File, error) {
	p, err := s.Path(rel)
	if err != nil {
		return nil, err
	}
	f, err := ini.LoadSources(loadOptions, p)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rel, err)
	}
	return f, nil
}

// Get returns one entry's value
func (s *Store) Get(rel, section, key string) (string, bool, error) {
	f, err := s.Read(rel)
	if err != nil {
		return "", false, err
	}
	sec, err := f.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return "", false, nil
	}
	return sec.Key(key).String(), true, nil
}

// SetEntry applies an edit, creating the file, section and key as needed
func (s *Store) SetEntry(rel string, edit domain.ConfigEdit) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	f, err := s.Read(rel)
	if err != nil {
		return err
	}

	f.Section(edit.Section).Key(edit.Key).SetValue(edit.Value)

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := f.SaveTo(p); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
