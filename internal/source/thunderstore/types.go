package thunderstore

// Thunderstore v1 package index types
// API docs: https://thunderstore.io/api/docs/

// Package is one record of the flat community package index
type Package struct {
	Name         string    `json:"name"`
	FullName     string    `json:"full_name"`
	Owner        string    `json:"owner"`
	PackageURL   string    `json:"package_url"`
	IsDeprecated bool      `json:"is_deprecated"`
	Versions     []Version `json:"versions"`
}

// Version is one published release of a package
type Version struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	VersionNumber string `json:"version_number"`
	DownloadURL   string `json:"download_url"`
	FileSize      int64  `json:"file_size"`
}
