// Package linker links a game version's config directory to the shared config directory.
package linker

import (
	"fmt"
	"os"

	"github.com/hq-launcher/hql/internal/domain"
)

// Linker makes a version's config directory (target) share content with the shared directory
type Linker interface {
	// Link replaces target with a view of shared. Files that only exist in a real
	// target directory are first copied into shared (add-only).
	Link(shared, target string) error
	// Unlink turns target back into a private directory holding a copy of shared.
	Unlink(shared, target string) error
	IsLinked(shared, target string) (bool, error)
	Method() domain.LinkMethod
}

// New creates a linker for the given method
func New(method domain.LinkMethod) Linker {
	switch method {
	case domain.LinkHardlink:
		return NewHardlink()
	case domain.LinkCopy:
		return NewCopy()
	default:
		return NewSymlink()
	}
}

// prepare migrates whatever sits at target into shared and clears target
func prepare(shared, target string) error {
	if err := os.MkdirAll(shared, 0755); err != nil {
		return fmt.Errorf("creating shared dir: %w", err)
	}

	info, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking target: %w", err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("removing old link: %w", err)
		}
	case info.IsDir():
		same, err := sameDir(shared, target)
		if err != nil {
			return err
		}
		if !same {
			if err := copyTree(target, shared, false); err != nil {
				return fmt.Errorf("migrating existing config: %w", err)
			}
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing old config dir: %w", err)
		}
	default:
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("removing file at config path: %w", err)
		}
	}
	return nil
}
