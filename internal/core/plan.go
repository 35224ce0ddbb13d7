package core

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/source"

	"github.com/charmbracelet/log"
)

// PlanStep installs one package
type PlanStep struct {
	ID      domain.ModID
	Version string
	Pinned  bool
	// Loader packages are extracted into the game root instead of the plugins folder
	Loader bool
	URL    string
}

// Name is the "Owner-Name@Version" label shown while the step runs
func (s PlanStep) Name() string {
	return s.ID.String() + "@" + s.Version
}

// SkippedMod is a manifest mod left out of the plan
type SkippedMod struct {
	ID     domain.ModID
	Reason string
}

// Plan is the resolved work for one install or update
type Plan struct {
	Version       int
	DepotManifest string
	Revision      int // manifest revision the plan was built from
	Steps         []PlanStep
	Skipped       []SkippedMod
}

// PlanOptions narrows a plan
type PlanOptions struct {
	// Only restricts the plan to these mod keys when non-nil
	Only          map[string]bool
	IncludeLoader bool
}

// Planner turns manifest entries into concrete package versions
type Planner struct {
	registry source.PackageRegistry
	loader   *PlanStep
	logger   *log.Logger
}

// NewPlanner creates a planner. loader is an "Owner-Name@Version" reference, or empty for none.
func NewPlanner(registry source.PackageRegistry, loader string, logger *log.Logger) (*Planner, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	p := &Planner{registry: registry, logger: logger}
	if loader != "" {
		step, err := ParseLoader(loader)
		if err != nil {
			return nil, err
		}
		step.URL = registry.DownloadURL(step.ID.Owner, step.ID.Name, step.Version)
		p.loader = &step
	}
	return p, nil
}

// ParseLoader parses "Owner-Name@Version"
func ParseLoader(ref string) (PlanStep, error) {
	ident, version, ok := strings.Cut(ref, "@")
	if !ok || version == "" {
		return PlanStep{}, fmt.Errorf("loader package %q: want Owner-Name@Version", ref)
	}
	id, err := domain.ParseModID(ident)
	if err != nil {
		return PlanStep{}, fmt.Errorf("loader package %q: %w", ref, err)
	}
	return PlanStep{ID: id, Version: version, Pinned: true, Loader: true}, nil
}

// Target resolves the package version a mod should have on a game version.
// A pin the registry does not list falls back to the latest version.
func (p *Planner) Target(ctx context.Context, mod domain.ModEntry, gameVersion int) (string, domain.PinDecision, error) {
	decision := domain.ResolvePin(mod, gameVersion)
	switch decision.Kind {
	case domain.PinNotApplicable:
		return "", decision, nil
	case domain.PinExact:
		ok, err := p.registry.HasVersion(ctx, mod.Owner, mod.Name, decision.Version)
		if err != nil {
			return "", decision, fmt.Errorf("%s: %w", mod.ID(), err)
		}
		if ok {
			return decision.Version, decision, nil
		}
		p.logger.Warn("pinned version not published, using latest", "mod", mod.ID(), "pin", decision.Version)
		decision = domain.PinDecision{Kind: domain.PinLatest}
	}

	latest, err := p.registry.LatestVersion(ctx, mod.Owner, mod.Name)
	if err != nil {
		return "", decision, fmt.Errorf("%s: %w", mod.ID(), err)
	}
	return latest, decision, nil
}

// Plan resolves every applicable mod of the manifest for gameVersion
func (p *Planner) Plan(ctx context.Context, m *domain.RemoteManifest, gameVersion int, opts PlanOptions) (*Plan, error) {
	depot, err := m.DepotFor(gameVersion)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Version: gameVersion, DepotManifest: depot, Revision: m.Revision}
	if opts.IncludeLoader && p.loader != nil {
		plan.Steps = append(plan.Steps, *p.loader)
	}

	for _, mod := range m.Mods {
		id := mod.ID()
		if opts.Only != nil && !opts.Only[id.Key()] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		version, decision, err := p.Target(ctx, mod, gameVersion)
		if err != nil {
			return nil, err
		}
		if !decision.Applicable() {
			plan.Skipped = append(plan.Skipped, SkippedMod{ID: id, Reason: decision.Reason})
			p.logger.Debug("skipping mod", "mod", id, "reason", decision.Reason)
			continue
		}

		plan.Steps = append(plan.Steps, PlanStep{
			ID:      id,
			Version: version,
			Pinned:  decision.Kind == domain.PinExact,
			URL:     p.registry.DownloadURL(id.Owner, id.Name, version),
		})
	}

	return plan, nil
}
