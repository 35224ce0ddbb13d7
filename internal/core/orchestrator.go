package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hq-launcher/hql/internal/depot"
	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/source"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// GameDownloader materializes a depot manifest into a directory
type GameDownloader interface {
	Download(ctx context.Context, manifestID, dir string, onProgress func(depot.Progress)) error
}

// OrchestratorOptions wires the orchestrator's collaborators
type OrchestratorOptions struct {
	Manifests source.ManifestSource
	Planner   *Planner
	Checker   *UpdateChecker
	Installer *Installer
	Game      GameDownloader
	State     StateStore
	Layout    Layout
	Bus       *Bus
	// ApplyChains runs during ApplyingConfigChains while the version's slot is held
	ApplyChains func(ctx context.Context, version int) error
	Logger      *log.Logger
}

// Task is one running install or update
type Task struct {
	mu          sync.Mutex
	state       domain.DownloadTask
	downloading bool // the depot download is running and may be cancelled
	cancel      context.CancelFunc
	done        chan struct{}
}

// Snapshot returns a copy of the task state
func (t *Task) Snapshot() domain.DownloadTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed when the task reaches Finished or Failed
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task ends and returns its final state and error
func (t *Task) Wait(ctx context.Context) (domain.DownloadTask, error) {
	select {
	case <-t.done:
		s := t.Snapshot()
		return s, s.Err
	case <-ctx.Done():
		return t.Snapshot(), ctx.Err()
	}
}

// slot marks a version as busy. task is nil for holders that are not tasks.
type slot struct {
	task *Task
}

// Orchestrator runs install and update tasks, at most one per game version
type Orchestrator struct {
	opts   OrchestratorOptions
	logger *log.Logger

	mu    sync.Mutex
	slots map[int]*slot
	last  map[int]*Task
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Orchestrator{
		opts:   opts,
		logger: logger,
		slots:  make(map[int]*slot),
		last:   make(map[int]*Task),
	}
}

// Acquire reserves a version for a writer other than a task. The returned
// function releases it.
func (o *Orchestrator) Acquire(version int) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.slots[version]; busy {
		return nil, domain.ErrBusy
	}
	s := &slot{}
	o.slots[version] = s
	var once sync.Once
	return func() {
		once.Do(func() { o.release(version, s) })
	}, nil
}

func (o *Orchestrator) release(version int, s *slot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.slots[version] == s {
		delete(o.slots, version)
	}
}

// Start launches a task in the background. A version that already has an
// active task or writer is rejected with domain.ErrBusy.
func (o *Orchestrator) Start(version int, mode domain.TaskMode) (*Task, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.slots[version]; busy {
		return nil, domain.ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		state: domain.DownloadTask{
			ID:      uuid.NewString(),
			Version: version,
			Mode:    mode,
			Phase:   domain.PhaseResolvingPlan,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s := &slot{task: t}
	o.slots[version] = s
	o.last[version] = t

	go o.run(ctx, t, s)
	return t, nil
}

// Install runs a full install and waits for it. Cancelling ctx requests
// cancellation of the task; the task still runs to a terminal state.
func (o *Orchestrator) Install(ctx context.Context, version int) (domain.DownloadTask, error) {
	return o.startAndWait(ctx, version, domain.ModeInstall)
}

// Update installs the updatable mods of an installed version and waits for it
func (o *Orchestrator) Update(ctx context.Context, version int) (domain.DownloadTask, error) {
	return o.startAndWait(ctx, version, domain.ModeUpdate)
}

func (o *Orchestrator) startAndWait(ctx context.Context, version int, mode domain.TaskMode) (domain.DownloadTask, error) {
	t, err := o.Start(version, mode)
	if err != nil {
		return domain.DownloadTask{}, err
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		if err := o.Cancel(version); err != nil {
			o.logger.Warn("could not cancel", "version", version, "err", err)
		}
		<-t.done
	}
	s := t.Snapshot()
	return s, s.Err
}

// Cancel stops the task of a version. Only the game-file download can be cancelled.
func (o *Orchestrator) Cancel(version int) error {
	o.mu.Lock()
	s, ok := o.slots[version]
	o.mu.Unlock()
	if !ok || s.task == nil {
		return fmt.Errorf("%w: %d", domain.ErrNoActiveTask, version)
	}

	t := s.task
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.downloading {
		return fmt.Errorf("%w: %s", domain.ErrNotCancellable, t.state.Phase)
	}
	t.state.CancelRequested = true
	t.cancel()
	return nil
}

// Snapshot returns the active or most recent task of a version
func (o *Orchestrator) Snapshot(version int) (domain.DownloadTask, bool) {
	o.mu.Lock()
	t, ok := o.last[version]
	o.mu.Unlock()
	if !ok {
		return domain.DownloadTask{}, false
	}
	return t.Snapshot(), true
}

// Active returns the versions that currently have a running task
func (o *Orchestrator) Active() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []int
	for v, s := range o.slots {
		if s.task != nil {
			out = append(out, v)
		}
	}
	return out
}

func (o *Orchestrator) run(ctx context.Context, t *Task, s *slot) {
	defer close(t.done)
	defer o.release(t.state.Version, s)
	defer t.cancel()

	o.publish(t, EventDownloadProgress)
	err := o.execute(ctx, t)

	t.mu.Lock()
	if err != nil {
		t.state.Err = &domain.TaskError{Version: t.state.Version, Phase: t.state.Phase, Err: err}
		t.state.Phase = domain.PhaseFailed
	} else {
		t.state.Phase = domain.PhaseFinished
		t.state.StepIndex = t.state.StepsTotal
		t.state.StepProgress = 1
	}
	t.mu.Unlock()

	if err != nil {
		o.logger.Error("task failed", "version", t.state.Version, "mode", t.state.Mode, "err", err)
		o.publish(t, EventDownloadError)
		return
	}
	o.logger.Info("task finished", "version", t.state.Version, "mode", t.state.Mode)
	o.publish(t, EventDownloadFinished)
}

func (o *Orchestrator) execute(ctx context.Context, t *Task) error {
	version := t.state.Version
	mode := t.state.Mode

	plan, err := o.resolve(ctx, version, mode)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.state.StepsTotal = len(plan.Steps) + 2
	t.mu.Unlock()

	if err := o.downloadGameFiles(ctx, t, plan); err != nil {
		return err
	}

	for i, step := range plan.Steps {
		o.update(t, func(s *domain.DownloadTask) {
			s.StepIndex = i + 2
			s.StepName = step.Name()
			s.StepProgress = 0
			s.BytesDownloaded, s.BytesTotal = 0, 0
		})
		err := o.opts.Installer.Install(ctx, version, step, func(p StepProgress) {
			o.update(t, func(s *domain.DownloadTask) {
				s.StepProgress = p.Fraction
				s.BytesDownloaded = p.BytesDownloaded
				s.BytesTotal = p.BytesTotal
			})
		})
		if err != nil {
			return err
		}
		if step.Loader {
			continue
		}
		if err := o.opts.State.SetInstalledMod(version, step.ID, step.Version); err != nil {
			return fmt.Errorf("recording %s: %w", step.Name(), err)
		}
	}

	o.update(t, func(s *domain.DownloadTask) {
		s.Phase = domain.PhaseApplyingConfigChains
		s.StepIndex = s.StepsTotal
		s.StepName = "config"
		s.StepProgress = 0
		s.BytesDownloaded, s.BytesTotal = 0, 0
	})
	if o.opts.ApplyChains != nil {
		if err := o.opts.ApplyChains(ctx, version); err != nil {
			return fmt.Errorf("applying config: %w", err)
		}
	}
	if err := o.opts.State.SetAppliedRevision(version, plan.Revision); err != nil {
		return fmt.Errorf("recording manifest revision: %w", err)
	}
	return nil
}

// resolve builds the plan. Updates are restricted to the mods the checker reports.
func (o *Orchestrator) resolve(ctx context.Context, version int, mode domain.TaskMode) (*Plan, error) {
	m, err := o.opts.Manifests.FetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}

	if mode == domain.ModeInstall {
		return o.opts.Planner.Plan(ctx, m, version, PlanOptions{IncludeLoader: true})
	}

	updatable, err := o.opts.Checker.Check(ctx, version)
	if err != nil {
		return nil, err
	}
	only := make(map[string]bool, len(updatable))
	for _, id := range updatable {
		only[id.Key()] = true
	}
	return o.opts.Planner.Plan(ctx, m, version, PlanOptions{Only: only})
}

func (o *Orchestrator) downloadGameFiles(ctx context.Context, t *Task, plan *Plan) error {
	version := plan.Version
	o.update(t, func(s *domain.DownloadTask) {
		s.Phase = domain.PhaseDownloadingGameFiles
		s.StepIndex = 1
		s.StepName = "game files"
	})

	if t.state.Mode == domain.ModeUpdate {
		o.update(t, func(s *domain.DownloadTask) {
			s.StepName = "game files (skipped)"
			s.StepProgress = 1
		})
		return o.enterMods(t)
	}

	recorded, ok, err := o.opts.State.GameFiles(version)
	if err != nil {
		return err
	}
	if ok && recorded == plan.DepotManifest {
		o.logger.Info("game files already downloaded", "version", version, "manifest", recorded)
		o.update(t, func(s *domain.DownloadTask) {
			s.StepName = "game files (already downloaded)"
			s.StepProgress = 1
		})
		return o.enterMods(t)
	}
	if ok {
		o.logger.Info("depot manifest changed, reinstalling", "version", version, "old", recorded, "new", plan.DepotManifest)
		if err := o.opts.State.ClearVersion(version); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.downloading = true
	t.mu.Unlock()

	dir := o.opts.Layout.VersionDir(version)
	err = o.opts.Game.Download(ctx, plan.DepotManifest, dir, func(p depot.Progress) {
		o.update(t, func(s *domain.DownloadTask) {
			if p.Total > 0 {
				s.StepProgress = float64(p.Current) / float64(p.Total)
			}
			if p.Bytes > 0 {
				s.BytesDownloaded, s.BytesTotal = p.Bytes, p.Bytes
			}
		})
	})

	t.mu.Lock()
	t.downloading = false
	cancelled := t.state.CancelRequested
	t.mu.Unlock()
	if cancelled || errors.Is(err, domain.ErrCancelled) {
		return o.cleanupCancelled(version)
	}
	if err != nil {
		return err
	}

	if err := o.opts.State.MarkGameFiles(version, plan.DepotManifest); err != nil {
		return err
	}
	return o.enterMods(t)
}

func (o *Orchestrator) enterMods(t *Task) error {
	o.update(t, func(s *domain.DownloadTask) {
		s.Phase = domain.PhaseInstallingMods
		s.StepProgress = 1
	})
	return nil
}

// cleanupCancelled removes the partial install and its records
func (o *Orchestrator) cleanupCancelled(version int) error {
	o.logger.Info("download cancelled, removing partial install", "version", version)
	var errs []error
	if err := os.RemoveAll(o.opts.Layout.VersionDir(version)); err != nil {
		errs = append(errs, fmt.Errorf("removing version dir: %w", err))
	}
	if err := o.opts.State.ClearVersion(version); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(append([]error{domain.ErrCancelled}, errs...)...)
}

// update mutates the task state and publishes the result
func (o *Orchestrator) update(t *Task, fn func(*domain.DownloadTask)) {
	t.mu.Lock()
	fn(&t.state)
	t.mu.Unlock()
	o.publish(t, EventDownloadProgress)
}

func (o *Orchestrator) publish(t *Task, name string) {
	s := t.Snapshot()
	e := Event{
		Name:            name,
		TaskID:          s.ID,
		Version:         s.Version,
		Mode:            s.Mode,
		Phase:           s.Phase,
		Step:            s.StepIndex,
		StepsTotal:      s.StepsTotal,
		StepName:        s.StepName,
		Percent:         s.OverallPercent(),
		BytesDownloaded: s.BytesDownloaded,
		BytesTotal:      s.BytesTotal,
	}
	if s.Err != nil {
		e.Message = domain.Describe(s.Err)
	}
	o.opts.Bus.Publish(e)
}
