package core

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ExtractProgress reports archive entries processed so far
type ExtractProgress func(done, total int)

// Extractor unpacks registry package archives
type Extractor struct{}

// NewExtractor creates a new Extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// CheckArchive rejects payloads that are not zip archives (error pages, truncated files)
func (e *Extractor) CheckArchive(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 2)
	if _, err := io.ReadFull(f, magic); err != nil || !bytes.Equal(magic, []byte("PK")) {
		return fmt.Errorf("%s is not a zip archive", filepath.Base(archivePath))
	}
	return nil
}

// ExtractPlugin replaces pluginDir with the archive's contents. Entries below a
// "BepInEx/plugins/" or "plugins/" folder are re-rooted at pluginDir.
func (e *Extractor) ExtractPlugin(archivePath, pluginDir string, progress ExtractProgress) error {
	if err := os.RemoveAll(pluginDir); err != nil {
		return fmt.Errorf("removing old plugin folder: %w", err)
	}
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		return fmt.Errorf("creating plugin folder: %w", err)
	}
	return e.extractZip(archivePath, pluginDir, pluginEntryPath, progress)
}

// ExtractLoader installs a loader pack into the game root. The package's top-level
// folder is stripped and its top-level metadata files are ignored.
func (e *Extractor) ExtractLoader(archivePath, gameRoot string, progress ExtractProgress) error {
	if err := os.MkdirAll(gameRoot, 0755); err != nil {
		return fmt.Errorf("creating game dir: %w", err)
	}
	return e.extractZip(archivePath, gameRoot, loaderEntryPath, progress)
}

func pluginEntryPath(name string) (string, bool) {
	parts := strings.Split(name, "/")
	for i := 0; i+1 < len(parts); i++ {
		if strings.EqualFold(parts[i], "BepInEx") && strings.EqualFold(parts[i+1], "plugins") {
			return strings.Join(parts[i+2:], "/"), true
		}
	}
	for i, p := range parts {
		if strings.EqualFold(p, "plugins") {
			return strings.Join(parts[i+1:], "/"), true
		}
	}
	return name, true
}

func loaderEntryPath(name string) (string, bool) {
	_, rest, ok := strings.Cut(name, "/")
	if !ok {
		return "", false // top-level file: manifest.json, icon.png, README.md
	}
	return rest, true
}

// extractZip extracts a ZIP archive, mapping each entry name through mapName
func (e *Extractor) extractZip(archivePath, destDir string, mapName func(string) (string, bool), progress ExtractProgress) (err error) {
	if err := e.CheckArchive(archivePath); err != nil {
		return err
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing zip: %w", cerr)
		}
	}()

	total := len(r.File)
	for i, f := range r.File {
		name := path.Clean(strings.ReplaceAll(f.Name, "\\", "/"))
		rel, ok := mapName(strings.TrimPrefix(name, "/"))
		if ok && rel != "" && rel != "." {
			if err := e.extractZipFile(f, destDir, rel); err != nil {
				return err
			}
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	return nil
}

// extractZipFile extracts a single file from a ZIP archive
func (e *Extractor) extractZipFile(f *zip.File, destDir, rel string) (err error) {
	// Sanitize the file path to prevent zip slip attacks
	destPath, err := e.sanitizePath(destDir, rel)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening file %s in archive: %w", f.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing archive entry %s: %w", f.Name, cerr)
		}
	}()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", destPath, err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing file %s: %w", destPath, cerr)
		}
	}()

	if _, err = io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("writing file %s: %w", destPath, err)
	}

	return nil
}

// sanitizePath ensures the extracted file path is within the destination directory
func (e *Extractor) sanitizePath(destDir, filePath string) (string, error) {
	destPath := filepath.Join(destDir, filepath.FromSlash(filePath))

	cleanDest := filepath.Clean(destDir)
	if destPath != cleanDest && !strings.HasPrefix(destPath, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal detected: %s", filePath)
	}

	return destPath, nil
}
