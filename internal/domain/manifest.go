package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ModID identifies a mod package. Comparison is case-insensitive.
type ModID struct {
	Owner string
	Name  string
}

// Key returns the normalized identity used for lookups and persistence.
func (id ModID) Key() string {
	return strings.ToLower(id.Owner) + "-" + strings.ToLower(id.Name)
}

func (id ModID) String() string {
	return id.Owner + "-" + id.Name
}

// Is reports whether both identities name the same mod.
func (id ModID) Is(other ModID) bool {
	return strings.EqualFold(id.Owner, other.Owner) && strings.EqualFold(id.Name, other.Name)
}

// ParseModID parses "Owner-Name". Package names never contain '-', so the last one splits.
func ParseModID(s string) (ModID, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return ModID{}, fmt.Errorf("invalid mod identity %q (want Owner-Name)", s)
	}
	return ModID{Owner: s[:i], Name: s[i+1:]}, nil
}

// ModEntry is one mod listed in the remote manifest.
type ModEntry struct {
	Owner       string
	Name        string
	Enabled     bool
	LowBound    *int
	HighBound   *int
	VersionPins map[int]string
}

// ID returns the entry's identity.
func (m ModEntry) ID() ModID {
	return ModID{Owner: m.Owner, Name: m.Name}
}

type modEntryJSON struct {
	Dev           string          `json:"dev"`
	Name          string          `json:"name"`
	Enabled       *bool           `json:"enabled"`
	LowCap        *int            `json:"low_cap"`
	HighCap       *int            `json:"high_cap"`
	VersionConfig json.RawMessage `json:"version_config"`
}

// UnmarshalJSON decodes the manifest wire shape; enabled defaults to true.
func (m *ModEntry) UnmarshalJSON(data []byte) error {
	var raw modEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pins, err := parseVersionKeyed(raw.VersionConfig)
	if err != nil {
		return fmt.Errorf("mod %s-%s version_config: %w", raw.Dev, raw.Name, err)
	}
	*m = ModEntry{
		Owner:       strings.TrimSpace(raw.Dev),
		Name:        strings.TrimSpace(raw.Name),
		Enabled:     raw.Enabled == nil || *raw.Enabled,
		LowBound:    raw.LowCap,
		HighBound:   raw.HighCap,
		VersionPins: pins,
	}
	return nil
}

// MarshalJSON writes the same wire shape UnmarshalJSON reads.
func (m ModEntry) MarshalJSON() ([]byte, error) {
	pins := make(map[string]string, len(m.VersionPins))
	for k, v := range m.VersionPins {
		pins[strconv.Itoa(k)] = v
	}
	enabled := m.Enabled
	return json.Marshal(struct {
		Dev           string            `json:"dev"`
		Name          string            `json:"name"`
		Enabled       *bool             `json:"enabled"`
		LowCap        *int              `json:"low_cap,omitempty"`
		HighCap       *int              `json:"high_cap,omitempty"`
		VersionConfig map[string]string `json:"version_config,omitempty"`
	}{m.Owner, m.Name, &enabled, m.LowBound, m.HighBound, pins})
}

// RemoteManifest is the remotely hosted description of game versions and their mod set.
type RemoteManifest struct {
	Revision int
	Depots   map[int]string
	Chains   [][]string
	Mods     []ModEntry
}

type manifestJSON struct {
	Version     int             `json:"version"`
	Manifests   json.RawMessage `json:"manifests"`
	ChainConfig [][]string      `json:"chain_config"`
	Mods        []ModEntry      `json:"mods"`
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*RemoteManifest, error) {
	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	depots, err := parseVersionKeyed(raw.Manifests)
	if err != nil {
		return nil, fmt.Errorf("%w: manifests: %w", ErrMalformed, err)
	}
	m := &RemoteManifest{
		Revision: raw.Version,
		Depots:   depots,
		Chains:   raw.ChainConfig,
		Mods:     raw.Mods,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseVersionKeyed walks an object whose keys are decimal game versions.
// Keys are read in document order, so "056" followed by "56" keeps the later value.
func parseVersionKeyed(raw json.RawMessage) (map[int]string, error) {
	out := make(map[int]string)
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected an object keyed by game version")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("key %q is not a game version", key)
		}
		out[n] = value
	}
	return out, nil
}

// Validate checks identity uniqueness, bound ordering and chain disjointness.
func (m *RemoteManifest) Validate() error {
	var problems []error

	for v, depot := range m.Depots {
		if strings.TrimSpace(depot) == "" {
			problems = append(problems, fmt.Errorf("version %d has an empty depot manifest id", v))
		}
	}

	seen := make(map[string]bool, len(m.Mods))
	for i, mod := range m.Mods {
		if mod.Owner == "" || mod.Name == "" {
			problems = append(problems, fmt.Errorf("mods[%d]: owner and name are required", i))
			continue
		}
		key := mod.ID().Key()
		if seen[key] {
			problems = append(problems, fmt.Errorf("mods[%d]: duplicate identity %s", i, mod.ID()))
		}
		seen[key] = true
		if mod.LowBound != nil && mod.HighBound != nil && *mod.LowBound > *mod.HighBound {
			problems = append(problems, fmt.Errorf("mod %s: low bound %d above high bound %d", mod.ID(), *mod.LowBound, *mod.HighBound))
		}
		for k, v := range mod.VersionPins {
			if strings.TrimSpace(v) == "" {
				problems = append(problems, fmt.Errorf("mod %s: empty pin for version %d", mod.ID(), k))
			}
		}
	}

	owner := make(map[string]int)
	for i, chain := range m.Chains {
		for _, p := range chain {
			norm := NormalizeConfigPath(p)
			if norm == "" {
				problems = append(problems, fmt.Errorf("chain_config[%d]: empty path", i))
				continue
			}
			if j, ok := owner[norm]; ok && j != i {
				problems = append(problems, fmt.Errorf("chain_config[%d]: %s already in chain %d", i, p, j))
				continue
			}
			owner[norm] = i
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrMalformed, errors.Join(problems...))
	}
	return nil
}

// DepotFor returns the depot manifest id for a game version.
func (m *RemoteManifest) DepotFor(version int) (string, error) {
	id, ok := m.Depots[version]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return id, nil
}

// Versions returns the game versions the manifest knows, ascending.
func (m *RemoteManifest) Versions() []int {
	out := make([]int, 0, len(m.Depots))
	for v := range m.Depots {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Mod looks up an entry by identity.
func (m *RemoteManifest) Mod(id ModID) (ModEntry, bool) {
	for _, mod := range m.Mods {
		if mod.ID().Is(id) {
			return mod, true
		}
	}
	return ModEntry{}, false
}

// NormalizeConfigPath makes config-relative paths comparable: forward slashes, lowercase, no leading "./".
func NormalizeConfigPath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return strings.ToLower(p)
}
