package core

import (
	"fmt"
	"sync"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/config"
	"github.com/hq-launcher/hql/internal/storage/db"
)

// StateStore is the single access point for persisted install state. Per-version
// writes are serialized by the caller through Orchestrator.Acquire; the global
// disabled set is guarded by the store itself.
type StateStore interface {
	InstalledMods(version int) ([]domain.InstalledMod, error)
	// InstalledMod returns nil when the mod is not recorded
	InstalledMod(version int, id domain.ModID) (*domain.InstalledMod, error)
	RemoveInstalledMod(version int, id domain.ModID) error
	SetInstalledMod(version int, id domain.ModID, pkgVersion string) error
	ReplaceInstalledMods(version int, mods []domain.InstalledMod) error
	GameFiles(version int) (manifest string, ok bool, err error)
	MarkGameFiles(version int, manifest string) error
	// AppliedRevision is the manifest revision the version's mods were last installed from
	AppliedRevision(version int) (revision int, ok bool, err error)
	SetAppliedRevision(version, revision int) error
	// ClearVersion forgets everything recorded for a version
	ClearVersion(version int) error
	InstalledVersions() ([]int, error)

	Disabled() ([]domain.ModID, error)
	IsDisabled(id domain.ModID) (bool, error)
	SetDisabled(id domain.ModID, disabled bool) (changed bool, err error)
}

// Store implements StateStore on the sqlite database and the disabled-mod file
type Store struct {
	db        *db.DB
	configDir string

	mu       sync.Mutex
	disabled *config.DisabledList
}

// NewStore creates a state store
func NewStore(database *db.DB, configDir string) *Store {
	return &Store{db: database, configDir: configDir}
}

// InstalledMods returns a version's installed mods with their enabled flag
func (s *Store) InstalledMods(version int) ([]domain.InstalledMod, error) {
	mods, err := s.db.GetInstalledMods(version)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadDisabled()
	if err != nil {
		return nil, err
	}
	for i := range mods {
		mods[i].Enabled = !list.Contains(mods[i].ID)
	}
	return mods, nil
}

func (s *Store) InstalledMod(version int, id domain.ModID) (*domain.InstalledMod, error) {
	mod, err := s.db.GetInstalledMod(version, id)
	if err != nil || mod == nil {
		return nil, err
	}
	disabled, err := s.IsDisabled(id)
	if err != nil {
		return nil, err
	}
	mod.Enabled = !disabled
	return mod, nil
}

func (s *Store) RemoveInstalledMod(version int, id domain.ModID) error {
	return s.db.DeleteInstalledMod(version, id)
}

func (s *Store) SetInstalledMod(version int, id domain.ModID, pkgVersion string) error {
	return s.db.SaveInstalledMod(version, id, pkgVersion)
}

func (s *Store) ReplaceInstalledMods(version int, mods []domain.InstalledMod) error {
	return s.db.ReplaceInstalledMods(version, mods)
}

func (s *Store) GameFiles(version int) (string, bool, error) {
	return s.db.GameFilesManifest(version)
}

func (s *Store) MarkGameFiles(version int, manifest string) error {
	return s.db.MarkGameFilesComplete(version, manifest)
}

func (s *Store) AppliedRevision(version int) (int, bool, error) {
	return s.db.ManifestRevision(version)
}

func (s *Store) SetAppliedRevision(version, revision int) error {
	return s.db.SetManifestRevision(version, revision)
}

func (s *Store) ClearVersion(version int) error {
	if err := s.db.DeleteInstalledMods(version); err != nil {
		return err
	}
	return s.db.ClearGameFiles(version)
}

func (s *Store) InstalledVersions() ([]int, error) {
	return s.db.InstalledVersions()
}

// Disabled returns the global disabled set
func (s *Store) Disabled() ([]domain.ModID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadDisabled()
	if err != nil {
		return nil, err
	}
	return list.IDs(), nil
}

func (s *Store) IsDisabled(id domain.ModID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadDisabled()
	if err != nil {
		return false, err
	}
	return list.Contains(id), nil
}

// SetDisabled updates and persists the global disabled set
func (s *Store) SetDisabled(id domain.ModID, disabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadDisabled()
	if err != nil {
		return false, err
	}
	if !list.Set(id, disabled) {
		return false, nil
	}
	if err := list.Save(s.configDir); err != nil {
		return false, fmt.Errorf("saving disabled mods: %w", err)
	}
	return true, nil
}

// loadDisabled reads the list once; callers hold s.mu
func (s *Store) loadDisabled() (*config.DisabledList, error) {
	if s.disabled != nil {
		return s.disabled, nil
	}
	list, err := config.LoadDisabled(s.configDir)
	if err != nil {
		return nil, err
	}
	s.disabled = list
	return list, nil
}
