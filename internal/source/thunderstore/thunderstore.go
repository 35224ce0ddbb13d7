package thunderstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/cache"
)

// Registry implements source.PackageRegistry on top of the flat index.
// The index is fetched once per session and shared by every caller.
type Registry struct {
	client *Client
	cache  *cache.Cache
	maxAge time.Duration
	logger *log.Logger

	group singleflight.Group
	mu    sync.RWMutex
	index map[string]*Package // keyed by domain.ModID.Key()
}

// Options configures a Registry
type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	Community  string
	Cache      *cache.Cache  // optional on-disk index snapshot
	MaxAge     time.Duration // how long the disk snapshot is trusted
	Logger     *log.Logger
}

// New creates a registry
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Registry{
		client: NewClient(opts.HTTPClient, opts.BaseURL, opts.Community),
		cache:  opts.Cache,
		maxAge: opts.MaxAge,
		logger: logger,
	}
}

// DownloadURL builds the archive URL for a package version
func (r *Registry) DownloadURL(owner, name, version string) string {
	return r.client.DownloadURL(owner, name, version)
}

// LatestVersion returns the highest published version of a package
func (r *Registry) LatestVersion(ctx context.Context, owner, name string) (string, error) {
	versions, err := r.Versions(ctx, owner, name)
	if err != nil {
		return "", err
	}
	latest := domain.MaxVersion(versions)
	if latest == "" {
		return "", fmt.Errorf("%w: %s-%s has no published versions", domain.ErrNotFound, owner, name)
	}
	return latest, nil
}

// HasVersion reports whether a version is published
func (r *Registry) HasVersion(ctx context.Context, owner, name, version string) (bool, error) {
	versions, err := r.Versions(ctx, owner, name)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if v == version || domain.SameVersion(v, version) {
			return true, nil
		}
	}
	return false, nil
}

// Versions lists every published version string of a package
func (r *Registry) Versions(ctx context.Context, owner, name string) ([]string, error) {
	pkg, err := r.lookup(ctx, domain.ModID{Owner: owner, Name: name})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pkg.Versions))
	for _, v := range pkg.Versions {
		if strings.TrimSpace(v.VersionNumber) != "" {
			out = append(out, v.VersionNumber)
		}
	}
	return out, nil
}

// Refresh drops the in-memory and on-disk index so the next query refetches
func (r *Registry) Refresh() error {
	r.mu.Lock()
	r.index = nil
	r.mu.Unlock()
	if r.cache != nil {
		return r.cache.InvalidateIndex()
	}
	return nil
}

func (r *Registry) lookup(ctx context.Context, id domain.ModID) (*Package, error) {
	index, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	pkg, ok := index[id.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return pkg, nil
}

func (r *Registry) loadIndex(ctx context.Context) (map[string]*Package, error) {
	r.mu.RLock()
	index := r.index
	r.mu.RUnlock()
	if index != nil {
		return index, nil
	}

	v, err, _ := r.group.Do("index", func() (interface{}, error) {
		r.mu.RLock()
		loaded := r.index
		r.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		parsed, err := r.readIndex(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.index = parsed
		r.mu.Unlock()
		r.logger.Debug("package index loaded", "packages", len(parsed))
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]*Package), nil
}

// readIndex returns the disk snapshot when fresh, otherwise fetches the index.
// Only an index that parses is written back to the cache.
func (r *Registry) readIndex(ctx context.Context) (map[string]*Package, error) {
	if r.cache != nil {
		data, ok, err := r.cache.LoadIndex(r.maxAge)
		switch {
		case err != nil:
			r.logger.Warn("ignoring cached package index", "err", err)
		case ok:
			parsed, err := parseIndex(data)
			if err == nil {
				return parsed, nil
			}
			r.logger.Warn("discarding corrupt cached package index", "err", err)
			if err := r.cache.InvalidateIndex(); err != nil {
				r.logger.Warn("could not remove cached package index", "err", err)
			}
		}
	}

	r.logger.Info("fetching package index", "url", r.client.IndexURL())
	data, err := r.client.FetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := parseIndex(data)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.StoreIndex(data); err != nil {
			r.logger.Warn("could not cache package index", "err", err)
		}
	}
	return parsed, nil
}

func parseIndex(data []byte) (map[string]*Package, error) {
	var pkgs []Package
	if err := json.Unmarshal(data, &pkgs); err != nil {
		return nil, fmt.Errorf("%w: decoding index: %w", domain.ErrRegistryUnavailable, err)
	}
	index := make(map[string]*Package, len(pkgs))
	for i := range pkgs {
		p := &pkgs[i]
		key := domain.ModID{Owner: p.Owner, Name: p.Name}.Key()
		if existing, ok := index[key]; ok {
			// Same identity listed twice: merge so selection stays order independent.
			existing.Versions = append(existing.Versions, p.Versions...)
			continue
		}
		index[key] = p
	}
	return index, nil
}
