package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/source"

	"github.com/charmbracelet/log"
)

// UpdateChecker finds installed mods whose target package version has changed.
// It never modifies installed state.
type UpdateChecker struct {
	manifests source.ManifestSource
	planner   *Planner
	state     StateStore
	bus       *Bus
	logger    *log.Logger
}

// NewUpdateChecker creates a new update checker
func NewUpdateChecker(manifests source.ManifestSource, planner *Planner, state StateStore, bus *Bus, logger *log.Logger) *UpdateChecker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &UpdateChecker{
		manifests: manifests,
		planner:   planner,
		state:     state,
		bus:       bus,
		logger:    logger,
	}
}

// Check returns the mods of an installed version that need an update: installed mods whose
// resolved target differs from the installed version, and applicable mods not installed yet.
// Mods that fail to resolve are reported in the joined error alongside the partial result.
func (u *UpdateChecker) Check(ctx context.Context, version int) ([]domain.ModID, error) {
	updatable, err := u.check(ctx, version)
	if err != nil {
		u.bus.Publish(Event{Name: EventUpdatableError, Version: version, Updatable: updatable, Message: domain.Describe(err)})
		return updatable, err
	}
	u.bus.Publish(Event{Name: EventUpdatableFinished, Version: version, Updatable: updatable})
	return updatable, nil
}

func (u *UpdateChecker) check(ctx context.Context, version int) ([]domain.ModID, error) {
	if _, ok, err := u.state.GameFiles(version); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotInstalled, version)
	}

	m, err := u.manifests.FetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	if _, err := m.DepotFor(version); err != nil {
		return nil, err
	}

	mods, err := u.state.InstalledMods(version)
	if err != nil {
		return nil, fmt.Errorf("reading installed mods: %w", err)
	}
	installed := make(map[string]domain.InstalledMod, len(mods))
	for _, mod := range mods {
		installed[mod.ID.Key()] = mod
	}

	total := len(m.Mods)
	var updatable []domain.ModID
	var checkErrs []error

	for i, entry := range m.Mods {
		select {
		case <-ctx.Done():
			return updatable, ctx.Err()
		default:
		}

		id := entry.ID()
		target, decision, err := u.planner.Target(ctx, entry, version)
		switch {
		case err != nil:
			checkErrs = append(checkErrs, err)
		case !decision.Applicable():
		default:
			current, ok := installed[id.Key()]
			if !ok || !domain.SameVersion(current.Version, target) {
				u.logger.Debug("update available", "mod", id, "installed", current.Version, "target", target)
				updatable = append(updatable, id)
			}
		}

		u.bus.Publish(Event{
			Name:      EventUpdatableProgress,
			Version:   version,
			Checked:   i + 1,
			Total:     total,
			Updatable: updatable,
		})
	}

	if len(checkErrs) > 0 {
		return updatable, fmt.Errorf("update check had %d error(s): %w", len(checkErrs), errors.Join(checkErrs...))
	}
	return updatable, nil
}
