package thunderstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hq-launcher/hql/internal/domain"
)

const (
	defaultBaseURL   = "https://thunderstore.io"
	defaultCommunity = "lethal-company"
)

// Client wraps the Thunderstore v1 REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	community  string
}

// NewClient creates a new Thunderstore API client
func NewClient(httpClient *http.Client, baseURL, community string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if community == "" {
		community = defaultCommunity
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		community:  community,
	}
}

// IndexURL returns the community's flat package index endpoint
func (c *Client) IndexURL() string {
	return fmt.Sprintf("%s/c/%s/api/v1/package/", c.baseURL, url.PathEscape(c.community))
}

// DownloadURL builds the archive URL for a package version
func (c *Client) DownloadURL(owner, name, version string) string {
	return fmt.Sprintf("%s/package/download/%s/%s/%s/", c.baseURL,
		url.PathEscape(owner), url.PathEscape(name), url.PathEscape(version))
}

// FetchIndex downloads the raw package index. Every failure maps to ErrRegistryUnavailable.
func (c *Client) FetchIndex(ctx context.Context) (data []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.IndexURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRegistryUnavailable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing response body: %w", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrRegistryUnavailable, resp.StatusCode, string(body))
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading index: %w", domain.ErrRegistryUnavailable, err)
	}
	return data, nil
}
