package core_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hq-launcher/hql/internal/depot"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/stretchr/testify/require"
)

// fakeRegistry serves package versions from memory and archives from an httptest server
type fakeRegistry struct {
	mu       sync.Mutex
	versions map[string][]string
	err      error
	baseURL  string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{versions: make(map[string][]string), baseURL: "http://registry.invalid"}
}

func (r *fakeRegistry) add(owner, name string, versions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domain.ModID{Owner: owner, Name: name}.Key()
	r.versions[key] = append(r.versions[key], versions...)
}

func (r *fakeRegistry) LatestVersion(_ context.Context, owner, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	vs, ok := r.versions[domain.ModID{Owner: owner, Name: name}.Key()]
	if !ok {
		return "", fmt.Errorf("%w: %s-%s", domain.ErrNotFound, owner, name)
	}
	return domain.MaxVersion(vs), nil
}

func (r *fakeRegistry) HasVersion(_ context.Context, owner, name, version string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for _, v := range r.versions[domain.ModID{Owner: owner, Name: name}.Key()] {
		if v == version {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRegistry) DownloadURL(owner, name, version string) string {
	return fmt.Sprintf("%s/package/download/%s/%s/%s/", r.baseURL, owner, name, version)
}

// buildZip creates an in-memory zip archive from name -> content
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		if strings.HasSuffix(name, "/") {
			_, err := w.Create(name)
			require.NoError(t, err)
			continue
		}
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// packageServer serves /package/download/{owner}/{name}/{version}/ from a map of archives
type packageServer struct {
	*httptest.Server
	mu       sync.Mutex
	archives map[string][]byte
	hits     map[string]int
}

func newPackageServer(t *testing.T) *packageServer {
	t.Helper()
	ps := &packageServer{archives: make(map[string][]byte), hits: make(map[string]int)}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		data, ok := ps.archives[r.URL.Path]
		ps.hits[r.URL.Path]++
		ps.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		_, _ = w.Write(data)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *packageServer) put(owner, name, version string, data []byte) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.archives[fmt.Sprintf("/package/download/%s/%s/%s/", owner, name, version)] = data
}

func (ps *packageServer) hitCount(owner, name, version string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.hits[fmt.Sprintf("/package/download/%s/%s/%s/", owner, name, version)]
}

func intPtr(i int) *int { return &i }

func testManifest() *domain.RemoteManifest {
	return &domain.RemoteManifest{
		Revision: 7,
		Depots:   map[int]string{50: "5000", 56: "5600", 73: "7300"},
		Chains:   [][]string{{"A.cfg", "B.cfg"}},
		Mods: []domain.ModEntry{
			{Owner: "notnotnotswipez", Name: "MoreCompany", Enabled: true},
			{
				Owner: "giosuel", Name: "Imperium", Enabled: true,
				LowBound: intPtr(56), HighBound: intPtr(73),
				VersionPins: map[int]string{56: "0.2.1", 73: "1.1.1"},
			},
			{Owner: "x753", Name: "More_Suits", Enabled: false},
		},
	}
}

// staticManifests always returns the same manifest
type staticManifests struct {
	m *domain.RemoteManifest
}

func (s *staticManifests) FetchManifest(context.Context) (*domain.RemoteManifest, error) {
	return s.m, nil
}

// fakeGame stands in for the depot tool. With block set it reports half
// progress and waits for cancellation.
type fakeGame struct {
	mu        sync.Mutex
	calls     int
	manifests []string
	err       error
	block     bool
	started   chan struct{}
}

func newFakeGame() *fakeGame {
	return &fakeGame{started: make(chan struct{}, 1)}
}

func (g *fakeGame) Download(ctx context.Context, manifestID, dir string, onProgress func(depot.Progress)) error {
	g.mu.Lock()
	g.calls++
	g.manifests = append(g.manifests, manifestID)
	err, block := g.err, g.block
	g.mu.Unlock()

	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "Lethal Company.exe"), []byte(manifestID), 0644); err != nil {
		return err
	}
	onProgress(depot.Progress{Current: 5000, Total: 10000})

	if block {
		select {
		case g.started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return domain.ErrCancelled
	}
	onProgress(depot.Progress{Current: 10000, Total: 10000, Bytes: 4096})
	return nil
}

func (g *fakeGame) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// servePackage lists a package version in the registry and serves its archive.
// nil files produce a plugin archive with a manifest and one dll.
func servePackage(t *testing.T, reg *fakeRegistry, ps *packageServer, owner, name, version string, files map[string]string) {
	t.Helper()
	if files == nil {
		files = map[string]string{
			"manifest.json": fmt.Sprintf(`{"name":%q,"version_number":%q}`, name, version),
			name + ".dll":   "dll",
			"CHANGELOG.md":  version,
		}
	}
	reg.add(owner, name, version)
	ps.put(owner, name, version, buildZip(t, files))
}
