package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hq-launcher/hql/internal/domain"
)

const maxManifestSize = 4 << 20

// Client fetches the remote manifest over HTTP
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates a manifest client for the given document URL
func NewClient(httpClient *http.Client, url string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, url: url}
}

// FetchManifest downloads, parses and validates the manifest
func (c *Client) FetchManifest(ctx context.Context) (m *domain.RemoteManifest, err error) {
	if c.url == "" {
		return nil, fmt.Errorf("manifest url is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing response body: %w", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching manifest: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return domain.ParseManifest(data)
}

// Fetcher is anything that can produce a manifest
type Fetcher interface {
	FetchManifest(ctx context.Context) (*domain.RemoteManifest, error)
}

// Snapshot holds one manifest per session; Refresh replaces it explicitly.
type Snapshot struct {
	fetcher Fetcher

	mu      sync.Mutex
	current *domain.RemoteManifest
}

// NewSnapshot wraps a fetcher
func NewSnapshot(fetcher Fetcher) *Snapshot {
	return &Snapshot{fetcher: fetcher}
}

// FetchManifest returns the session's manifest, fetching it on first use
func (s *Snapshot) FetchManifest(ctx context.Context) (*domain.RemoteManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return s.current, nil
	}
	m, err := s.fetcher.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	s.current = m
	return m, nil
}

// Refresh fetches a new manifest. The previous snapshot is kept if the fetch fails.
func (s *Snapshot) Refresh(ctx context.Context) (*domain.RemoteManifest, error) {
	m, err := s.fetcher.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = m
	s.mu.Unlock()
	return m, nil
}
