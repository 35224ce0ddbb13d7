package source

import (
	"context"

	"github.com/hq-launcher/hql/internal/domain"
)

// PackageRegistry resolves mod package versions and their download locations
type PackageRegistry interface {
	// LatestVersion returns the highest published version. Fails with
	// domain.ErrNotFound or domain.ErrRegistryUnavailable.
	LatestVersion(ctx context.Context, owner, name string) (string, error)
	// HasVersion reports whether a specific version is published.
	HasVersion(ctx context.Context, owner, name, version string) (bool, error)
	// DownloadURL builds the archive URL without a network round trip.
	DownloadURL(owner, name, version string) string
}

// ManifestSource fetches the remote manifest
type ManifestSource interface {
	FetchManifest(ctx context.Context) (*domain.RemoteManifest, error)
}
