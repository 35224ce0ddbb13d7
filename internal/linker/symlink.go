package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hq-launcher/hql/internal/domain"
)

// SymlinkLinker replaces the config directory with a symbolic link to shared
type SymlinkLinker struct{}

// NewSymlink creates a new symlink linker
func NewSymlink() *SymlinkLinker {
	return &SymlinkLinker{}
}

// Link points target at shared
func (l *SymlinkLinker) Link(shared, target string) error {
	if linked, err := l.IsLinked(shared, target); err != nil || linked {
		return err
	}
	if err := prepare(shared, target); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent dir: %w", err)
	}
	if err := os.Symlink(shared, target); err != nil {
		return fmt.Errorf("creating symlink: %w", err)
	}
	return nil
}

// Unlink removes the link and materializes a private copy of shared
func (l *SymlinkLinker) Unlink(shared, target string) error {
	info, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return copyTree(shared, target, true)
		}
		return fmt.Errorf("checking config dir: %w", err)
	}

	// Only a symlink needs replacing
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}

	if err := os.Remove(target); err != nil {
		return fmt.Errorf("removing symlink: %w", err)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return copyTree(shared, target, true)
}

// IsLinked checks if target is a symlink resolving to shared
func (l *SymlinkLinker) IsLinked(shared, target string) (bool, error) {
	info, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false, nil
	}
	return sameDir(shared, target)
}

// Method returns the link method
func (l *SymlinkLinker) Method() domain.LinkMethod {
	return domain.LinkSymlink
}
