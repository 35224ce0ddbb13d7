package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hq-launcher/hql/internal/domain"
)

// Editor applies an edit to one config-relative file
type Editor interface {
	SetEntry(rel string, edit domain.ConfigEdit) error
}

// ChainMembership is the set of mods linked to a mod through config chains.
// A result built from name matching is provisional; it is Confirmed only when every
// mod involved has an exact config listing.
type ChainMembership struct {
	Mods      []domain.ModID
	Paths     []string
	Confirmed bool
}

// ChainResolver answers chain-group queries for one manifest
type ChainResolver struct {
	groups [][]string
	index  map[string]int

	mu       sync.RWMutex
	listings map[string][]string
}

// NewChainResolver indexes the manifest's chain groups. Groups are assumed non-overlapping
// (RemoteManifest.Validate); on overlap the first group wins.
func NewChainResolver(chains [][]string) *ChainResolver {
	r := &ChainResolver{
		index:    make(map[string]int),
		listings: make(map[string][]string),
	}
	for _, chain := range chains {
		group := make([]string, 0, len(chain))
		for _, p := range chain {
			key := domain.NormalizeConfigPath(p)
			if key == "" {
				continue
			}
			if _, dup := r.index[key]; dup {
				continue
			}
			r.index[key] = len(r.groups)
			group = append(group, p)
		}
		r.groups = append(r.groups, group)
	}
	return r
}

// ChainFor returns the chain group containing path
func (r *ChainResolver) ChainFor(path string) ([]string, bool) {
	i, ok := r.index[domain.NormalizeConfigPath(path)]
	if !ok {
		return nil, false
	}
	return slices.Clone(r.groups[i]), true
}

// SetListing records the exact config files of a mod, replacing any provisional match
func (r *ChainResolver) SetListing(id domain.ModID, paths []string) {
	norm := make([]string, 0, len(paths))
	for _, p := range paths {
		norm = append(norm, domain.NormalizeConfigPath(p))
	}
	r.mu.Lock()
	r.listings[id.Key()] = norm
	r.mu.Unlock()
}

// HasListing reports whether the exact listing of id is known
func (r *ChainResolver) HasListing(id domain.ModID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listings[id.Key()]
	return ok
}

// AddListing merges paths into the exact listing of id
func (r *ChainResolver) AddListing(id domain.ModID, paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing := r.listings[id.Key()]
	for _, p := range paths {
		key := domain.NormalizeConfigPath(p)
		if !slices.Contains(listing, key) {
			listing = append(listing, key)
		}
	}
	if listing == nil {
		listing = []string{}
	}
	r.listings[id.Key()] = listing
}

// ResetListings forgets every listing, making all memberships provisional
func (r *ChainResolver) ResetListings() {
	r.mu.Lock()
	r.listings = make(map[string][]string)
	r.mu.Unlock()
}

// groupsOf returns the chain groups a mod participates in
func (r *ChainResolver) groupsOf(id domain.ModID) (map[int]bool, bool) {
	r.mu.RLock()
	listing, confirmed := r.listings[id.Key()]
	r.mu.RUnlock()

	groups := make(map[int]bool)
	if confirmed {
		for _, p := range listing {
			if i, ok := r.index[p]; ok {
				groups[i] = true
			}
		}
		return groups, true
	}

	owner := strings.ToLower(id.Owner)
	name := strings.ToLower(id.Name)
	for p, i := range r.index {
		if (owner != "" && strings.Contains(p, owner)) || (name != "" && strings.Contains(p, name)) {
			groups[i] = true
		}
	}
	return groups, false
}

// ChainPaths returns the chain paths the mod participates in
func (r *ChainResolver) ChainPaths(id domain.ModID) ([]string, bool) {
	groups, confirmed := r.groupsOf(id)
	return r.pathsOf(groups), confirmed
}

// ModsSharingChain returns the candidates that share at least one chain group with id
func (r *ChainResolver) ModsSharingChain(id domain.ModID, candidates []domain.ModID) ChainMembership {
	groups, confirmed := r.groupsOf(id)
	out := ChainMembership{Confirmed: confirmed}
	if len(groups) == 0 && confirmed {
		return out
	}

	shared := make(map[int]bool)
	for _, c := range candidates {
		if c.Is(id) {
			continue
		}
		theirs, ok := r.groupsOf(c)
		if !ok {
			out.Confirmed = false
		}
		hit := false
		for g := range theirs {
			if groups[g] {
				shared[g] = true
				hit = true
			}
		}
		if hit {
			out.Mods = append(out.Mods, c)
		}
	}
	out.Paths = r.pathsOf(shared)
	return out
}

func (r *ChainResolver) pathsOf(groups map[int]bool) []string {
	var out []string
	for i, g := range r.groups {
		if groups[i] {
			out = append(out, g...)
		}
	}
	return out
}

// PropagateEdit applies edit to path and to every other member of its chain group,
// each file exactly once. It returns the paths written.
func (r *ChainResolver) PropagateEdit(editor Editor, path string, edit domain.ConfigEdit) ([]string, error) {
	targets := []string{path}
	if group, ok := r.ChainFor(path); ok {
		targets = append(targets, group...)
	}

	seen := make(map[string]bool)
	var written []string
	var errs []error
	for _, p := range targets {
		key := domain.NormalizeConfigPath(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := editor.SetEntry(p, edit); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		written = append(written, p)
	}
	return written, errors.Join(errs...)
}
