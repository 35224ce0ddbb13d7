package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/linker"
)

// LinkConfig ties a version's config directory to the shared one
func (s *Service) LinkConfig(version int) error {
	release, err := s.orchestrator.Acquire(version)
	if err != nil {
		return err
	}
	defer release()
	return s.linkConfig(version)
}

// UnlinkConfig gives a linked version a private copy of the shared config
func (s *Service) UnlinkConfig(version int) error {
	release, err := s.orchestrator.Acquire(version)
	if err != nil {
		return err
	}
	defer release()
	return s.unlinkConfig(version)
}

// ConfigLinkState reads a version's link marker
func (s *Service) ConfigLinkState(version int) (domain.ConfigLinkState, domain.LinkMethod, error) {
	data, err := os.ReadFile(s.layout.LinkMarker(version))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ConfigUnlinked, s.config.LinkMethod(), nil
	}
	if err != nil {
		return domain.ConfigUnlinked, 0, fmt.Errorf("reading link marker: %w", err)
	}
	return domain.ConfigLinked, domain.ParseLinkMethod(strings.TrimSpace(string(data))), nil
}

func (s *Service) linkConfig(version int) error {
	if _, err := os.Stat(s.layout.VersionDir(version)); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %d", domain.ErrNotInstalled, version)
	}

	state, method, err := s.ConfigLinkState(version)
	if err != nil {
		return err
	}
	want := s.config.LinkMethod()
	if state == domain.ConfigLinked && method == want {
		linked, err := linker.New(method).IsLinked(s.layout.SharedConfigDir(), s.layout.ConfigDir(version))
		if err == nil && linked {
			return nil
		}
	}

	l := linker.New(want)
	if err := l.Link(s.layout.SharedConfigDir(), s.layout.ConfigDir(version)); err != nil {
		return fmt.Errorf("linking config of v%d: %w", version, err)
	}

	marker := s.layout.LinkMarker(version)
	if err := os.MkdirAll(filepath.Dir(marker), 0755); err != nil {
		return fmt.Errorf("writing link marker: %w", err)
	}
	if err := os.WriteFile(marker, []byte(l.Method().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing link marker: %w", err)
	}
	s.logger.Info("linked config", "version", version, "method", l.Method())
	return nil
}

func (s *Service) unlinkConfig(version int) error {
	state, method, err := s.ConfigLinkState(version)
	if err != nil {
		return err
	}
	if state == domain.ConfigUnlinked {
		return nil
	}

	if err := linker.New(method).Unlink(s.layout.SharedConfigDir(), s.layout.ConfigDir(version)); err != nil {
		return fmt.Errorf("unlinking config of v%d: %w", version, err)
	}
	if err := os.Remove(s.layout.LinkMarker(version)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing link marker: %w", err)
	}
	s.logger.Info("unlinked config", "version", version)
	return nil
}
