package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hq-launcher/hql/internal/domain"
)

// CopyLinker fills the config directory with a snapshot of shared.
// Edits are not mirrored; relinking refreshes the snapshot.
type CopyLinker struct{}

// NewCopy creates a new copy linker
func NewCopy() *CopyLinker {
	return &CopyLinker{}
}

// Link copies shared into target
func (l *CopyLinker) Link(shared, target string) error {
	if err := prepare(shared, target); err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return copyTree(shared, target, true)
}

// Unlink leaves the copy in place; it is already private
func (l *CopyLinker) Unlink(shared, target string) error {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return copyTree(shared, target, true)
	}
	return nil
}

// IsLinked checks that every shared file exists in target
func (l *CopyLinker) IsLinked(shared, target string) (bool, error) {
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
		if _, err := os.Stat(filepath.Join(target, rel)); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// Method returns the link method
func (l *CopyLinker) Method() domain.LinkMethod {
	return domain.LinkCopy
}
