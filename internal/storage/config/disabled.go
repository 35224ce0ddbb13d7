package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hq-launcher/hql/internal/domain"

	"gopkg.in/yaml.v3"
)

// DisabledFileName is the global disabled-mod list inside the config directory
const DisabledFileName = "disabled_mods.yaml"

const disabledFileVersion = 2

// DefaultDisabled lists mods that start out disabled. Added by the v2 file format.
var DefaultDisabled = []domain.ModID{
	{Owner: "SlushyRH", Name: "FreeeeeeMoooooons"},
}

// DisabledMod is one entry of the disabled list, stored lowercased
type DisabledMod struct {
	Owner string `yaml:"dev"`
	Name  string `yaml:"name"`
}

// DisabledList is the set of mods disabled across every game version
type DisabledList struct {
	Version int           `yaml:"version"`
	Mods    []DisabledMod `yaml:"mods"`
}

func newDisabledMod(id domain.ModID) DisabledMod {
	return DisabledMod{
		Owner: strings.ToLower(strings.TrimSpace(id.Owner)),
		Name:  strings.ToLower(strings.TrimSpace(id.Name)),
	}
}

func defaultDisabledList() *DisabledList {
	l := &DisabledList{Version: disabledFileVersion}
	for _, id := range DefaultDisabled {
		l.Mods = append(l.Mods, newDisabledMod(id))
	}
	return l
}

// LoadDisabled reads the disabled list from configDir. A missing or unreadable file is
// replaced with the defaults; a v1 file is migrated. Either way the result is persisted.
func LoadDisabled(configDir string) (*DisabledList, error) {
	path := filepath.Join(configDir, DisabledFileName)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l := defaultDisabledList()
		return l, l.Save(configDir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading disabled mods: %w", err)
	}

	var l DisabledList
	if err := yaml.Unmarshal(data, &l); err != nil {
		reset := defaultDisabledList()
		if saveErr := reset.Save(configDir); saveErr != nil {
			return nil, saveErr
		}
		return reset, nil
	}

	if l.Version < disabledFileVersion {
		l.Version = disabledFileVersion
		for _, id := range DefaultDisabled {
			l.Mods = append(l.Mods, newDisabledMod(id))
		}
		l.normalize()
		if err := l.Save(configDir); err != nil {
			return nil, err
		}
		return &l, nil
	}

	l.normalize()
	return &l, nil
}

// Save writes the list to configDir
func (l *DisabledList) Save(configDir string) error {
	l.normalize()
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling disabled mods: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, DisabledFileName), data, 0644); err != nil {
		return fmt.Errorf("writing disabled mods: %w", err)
	}
	return nil
}

// Contains reports whether id is disabled
func (l *DisabledList) Contains(id domain.ModID) bool {
	return slices.Contains(l.Mods, newDisabledMod(id))
}

// Set marks id disabled or enabled and reports whether the list changed
func (l *DisabledList) Set(id domain.ModID, disabled bool) bool {
	m := newDisabledMod(id)
	i := slices.Index(l.Mods, m)
	switch {
	case disabled && i < 0:
		l.Mods = append(l.Mods, m)
		l.normalize()
		return true
	case !disabled && i >= 0:
		l.Mods = slices.Delete(l.Mods, i, i+1)
		return true
	}
	return false
}

// IDs returns the disabled identities
func (l *DisabledList) IDs() []domain.ModID {
	ids := make([]domain.ModID, 0, len(l.Mods))
	for _, m := range l.Mods {
		ids = append(ids, domain.ModID{Owner: m.Owner, Name: m.Name})
	}
	return ids
}

func (l *DisabledList) normalize() {
	for i := range l.Mods {
		l.Mods[i] = newDisabledMod(domain.ModID{Owner: l.Mods[i].Owner, Name: l.Mods[i].Name})
	}
	slices.SortFunc(l.Mods, func(a, b DisabledMod) int {
		if c := strings.Compare(a.Owner, b.Owner); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	l.Mods = slices.Compact(l.Mods)
}
