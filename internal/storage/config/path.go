// Package config loads application settings and the global disabled-mod list.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var errConfigPath = errors.New("invalid config path")

// ParseConfigPath validates an explicit config file path (--config-file) and returns it cleaned.
// The path must be absolute, free of "..", and name an existing .yaml or .yml file.
func ParseConfigPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty", errConfigPath)
	}

	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s is not absolute", errConfigPath, path)
	}

	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		return "", fmt.Errorf("%w: %s contains traversal", errConfigPath, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s does not exist", errConfigPath, path)
		}
		return "", err
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", errConfigPath, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return "", fmt.Errorf("%w: %s is not a yaml file", errConfigPath, path)
	}

	return filepath.Clean(path), nil
}
