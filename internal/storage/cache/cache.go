package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hq-launcher/hql/internal/domain"
)

const indexFile = "package-index.json"

// Cache manages downloaded package archives and the registry index snapshot
type Cache struct {
	basePath string
}

// New creates a new cache manager
func New(basePath string) *Cache {
	return &Cache{basePath: basePath}
}

// ArchivePath returns where a package version's archive is stored
func (c *Cache) ArchivePath(id domain.ModID, version string) string {
	return filepath.Join(c.basePath, "packages", id.Key(), version+".zip")
}

// HasArchive checks if a package version is cached
func (c *Cache) HasArchive(id domain.ModID, version string) bool {
	info, err := os.Stat(c.ArchivePath(id, version))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// DeleteArchive removes a cached package version and its checksum
func (c *Cache) DeleteArchive(id domain.ModID, version string) error {
	path := c.ArchivePath(id, version)
	for _, p := range []string{path, path + ".sha256"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting cached archive: %w", err)
		}
	}
	return nil
}

// SaveChecksum records the SHA-256 of a cached archive as it was downloaded
func (c *Cache) SaveChecksum(id domain.ModID, version, sum string) error {
	path := c.ArchivePath(id, version) + ".sha256"
	if err := os.WriteFile(path, []byte(sum+"\n"), 0644); err != nil {
		return fmt.Errorf("writing archive checksum: %w", err)
	}
	return nil
}

// VerifyArchive compares a cached archive with its recorded checksum.
// An archive without a recorded checksum is accepted.
func (c *Cache) VerifyArchive(id domain.ModID, version string) (bool, error) {
	path := c.ArchivePath(id, version)
	want, err := os.ReadFile(path + ".sha256")
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading archive checksum: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening cached archive: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, fmt.Errorf("hashing cached archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)) == strings.TrimSpace(string(want)), nil
}

// StoreIndex saves the raw registry index
func (c *Cache) StoreIndex(content []byte) error {
	if err := os.MkdirAll(c.basePath, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.basePath, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return fmt.Errorf("writing cached index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing cached index: %w", err)
	}
	return nil
}

// LoadIndex returns the cached index if it is younger than maxAge.
// A zero maxAge disables the disk cache.
func (c *Cache) LoadIndex(maxAge time.Duration) ([]byte, bool, error) {
	if maxAge <= 0 {
		return nil, false, nil
	}

	path := filepath.Join(c.basePath, indexFile)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("checking cached index: %w", err)
	}
	if time.Since(info.ModTime()) > maxAge {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("reading cached index: %w", err)
	}
	return data, true, nil
}

// InvalidateIndex drops the cached index so the next load goes to the network
func (c *Cache) InvalidateIndex() error {
	err := os.Remove(filepath.Join(c.basePath, indexFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cached index: %w", err)
	}
	return nil
}

// Size returns the total size of cached files
func (c *Cache) Size() (int64, error) {
	var totalSize int64
	err := filepath.WalkDir(c.basePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		totalSize += info.Size()
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("calculating cache size: %w", err)
	}

	return totalSize, nil
}

// Clear removes every cached archive and the index
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.basePath); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
