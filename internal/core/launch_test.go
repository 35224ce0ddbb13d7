package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/depot"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameProcess runs until killed or exited
type gameProcess struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func newGameProcess() *gameProcess {
	return &gameProcess{lines: make(chan string), done: make(chan struct{})}
}

func (p *gameProcess) Lines() <-chan string   { return p.lines }
func (p *gameProcess) WriteLine(string) error { return errors.New("no stdin") }
func (p *gameProcess) Wait() error            { <-p.done; return nil }
func (p *gameProcess) Kill() error            { p.exit(); return nil }
func (p *gameProcess) exit()                  { p.once.Do(func() { close(p.lines); close(p.done) }) }

type gameRunner struct {
	mu       sync.Mutex
	commands []depot.Command
	procs    []*gameProcess
}

func (r *gameRunner) Start(_ context.Context, c depot.Command) (depot.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := newGameProcess()
	r.commands = append(r.commands, c)
	r.procs = append(r.procs, p)
	return p, nil
}

func writeExecutable(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "Lethal Company.exe")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0755))
	return path
}

func TestFindExecutable(t *testing.T) {
	dir := t.TempDir()
	nested := writeExecutable(t, filepath.Join(dir, "a", "b"))

	found, err := core.FindExecutable(dir, "lethal company.exe")
	require.NoError(t, err)
	assert.Equal(t, nested, found)

	direct := writeExecutable(t, dir)
	found, err = core.FindExecutable(dir, "Lethal Company.exe")
	require.NoError(t, err)
	assert.Equal(t, direct, found)

	deep := t.TempDir()
	writeExecutable(t, filepath.Join(deep, "a", "b", "c", "d"))
	_, err = core.FindExecutable(deep, "Lethal Company.exe")
	assert.ErrorIs(t, err, domain.ErrNotInstalled)

	_, err = core.FindExecutable(filepath.Join(dir, "missing"), "Lethal Company.exe")
	assert.ErrorIs(t, err, domain.ErrNotInstalled)
}

func TestLauncher_OneInstanceAtATime(t *testing.T) {
	layout := core.Layout{DataDir: t.TempDir()}
	exe := writeExecutable(t, layout.VersionDir(73))
	runner := &gameRunner{}
	bus := core.NewBus()
	events, unsubscribe := bus.Subscribe(8)
	defer unsubscribe()

	l := core.NewLauncher(core.LauncherOptions{
		Layout:     layout,
		Runner:     runner,
		Executable: "Lethal Company.exe",
		Wrapper:    []string{"/opt/proton/proton", "run"},
		Bus:        bus,
	})

	released := make(chan struct{})
	require.NoError(t, l.Launch(73, nil, func() { close(released) }))
	assert.Equal(t, core.GameStatus{Running: true, Version: 73}, l.Status())

	require.Len(t, runner.commands, 1)
	cmd := runner.commands[0]
	assert.Equal(t, "/opt/proton/proton", cmd.Path)
	assert.Equal(t, []string{"run", exe}, cmd.Args)
	assert.Equal(t, filepath.Dir(exe), cmd.Dir)
	assert.Contains(t, cmd.Env, "WINEDLLOVERRIDES=winhttp=n,b")

	prepared := false
	err := l.Launch(73, func() error { prepared = true; return nil }, nil)
	assert.ErrorIs(t, err, domain.ErrGameRunning)
	assert.False(t, prepared)

	stopped, err := l.Stop()
	require.NoError(t, err)
	assert.True(t, stopped)
	<-released
	assert.False(t, l.Status().Running)

	stopped, err = l.Stop()
	require.NoError(t, err)
	assert.False(t, stopped)

	assert.Equal(t, core.EventGameStarted, (<-events).Name)
	assert.Equal(t, core.EventGameExited, (<-events).Name)
}

func TestLauncher_PrepareFailureDoesNotStart(t *testing.T) {
	layout := core.Layout{DataDir: t.TempDir()}
	writeExecutable(t, layout.VersionDir(56))
	runner := &gameRunner{}
	l := core.NewLauncher(core.LauncherOptions{Layout: layout, Runner: runner, Executable: "Lethal Company.exe"})

	err := l.Launch(56, func() error { return errors.New("plugins locked") }, nil)
	assert.EqualError(t, err, "plugins locked")
	assert.Empty(t, runner.commands)
	assert.False(t, l.Status().Running)
}

func TestService_LaunchAppliesDisabledAndHoldsVersion(t *testing.T) {
	runner := &gameRunner{}
	f := newServiceFixtureWithRunner(t, testManifest(), runner)

	assert.ErrorIs(t, f.svc.Launch(73), domain.ErrNotInstalled)

	f.install(t, 73)
	writeExecutable(t, f.layout.VersionDir(73))
	_, err := f.svc.SetModEnabled(context.Background(), imperium, false)
	require.NoError(t, err)

	// re-enable the files behind the disabled list's back; launching disables them again
	dir := f.layout.PluginDir(73, "giosuel", "Imperium")
	require.NoError(t, core.SetFilesEnabled(dir, true))
	require.FileExists(t, filepath.Join(dir, "Imperium.dll"))

	require.NoError(t, f.svc.Launch(73))
	assert.FileExists(t, filepath.Join(dir, "Imperium.dll.old"))
	assert.True(t, f.svc.GameStatus().Running)

	assert.ErrorIs(t, f.svc.LinkConfig(73), domain.ErrBusy, "a running version is reserved")
	assert.ErrorIs(t, f.svc.Launch(73), domain.ErrBusy)

	stopped, err := f.svc.StopGame()
	require.NoError(t, err)
	assert.True(t, stopped)
	require.NoError(t, f.svc.WaitGame(context.Background()))

	require.Eventually(t, func() bool {
		release, err := f.svc.Orchestrator().Acquire(73)
		if err != nil {
			return false
		}
		release()
		return true
	}, time.Second, 10*time.Millisecond)
}
