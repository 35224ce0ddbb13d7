package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hq-launcher/hql/internal/domain"
)

// HardlinkLinker mirrors shared into the config directory with one hard link per file.
// Files created later on either side are not shared until the next Link.
type HardlinkLinker struct{}

// NewHardlink creates a new hardlink linker
func NewHardlink() *HardlinkLinker {
	return &HardlinkLinker{}
}

// Link hard links every shared file into target
func (l *HardlinkLinker) Link(shared, target string) error {
	if err := prepare(shared, target); err != nil {
		return err
	}

	files, err := sharedFiles(shared)
	if err != nil {
		return fmt.Errorf("listing shared config: %w", err)
	}

	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	for _, rel := range files {
		dst := filepath.Join(target, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("creating destination dir: %w", err)
		}
		if err := os.Link(filepath.Join(shared, rel), dst); err != nil {
			return fmt.Errorf("creating hardlink: %w", err)
		}
	}
	return nil
}

// Unlink replaces every hard link with an independent copy
func (l *HardlinkLinker) Unlink(shared, target string) error {
	files, err := sharedFiles(shared)
	if err != nil {
		return fmt.Errorf("listing shared config: %w", err)
	}
	for _, rel := range files {
		if err := copyFile(filepath.Join(shared, rel), filepath.Join(target, rel)); err != nil {
			return err
		}
	}
	return nil
}

// IsLinked checks that every shared file is the same inode in target
func (l *HardlinkLinker) IsLinked(shared, target string) (bool, error) {
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	files, err := sharedFiles(shared)
	if err != nil {
		return false, err
	}
	for _, rel := range files {
		a, err := os.Stat(filepath.Join(shared, rel))
		if err != nil {
			return false, err
		}
		b, err := os.Stat(filepath.Join(target, rel))
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		if !os.SameFile(a, b) {
			return false, nil
		}
	}
	return true, nil
}

// Method returns the link method
func (l *HardlinkLinker) Method() domain.LinkMethod {
	return domain.LinkHardlink
}
