package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hq-launcher/hql/internal/depot"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/charmbracelet/log"
)

// exeSearchDepth bounds the search for the game executable below a version directory
const exeSearchDepth = 3

// LauncherOptions configures game launches
type LauncherOptions struct {
	Layout     Layout
	Runner     depot.Runner
	Executable string
	// Wrapper is prepended to the command line, e.g. a Proton binary and "run"
	Wrapper []string
	Bus     *Bus
	Logger  *log.Logger
}

// GameStatus describes the launched game
type GameStatus struct {
	Running bool
	Version int
}

// Launcher starts one game instance at a time and tracks it until it exits
type Launcher struct {
	opts   LauncherOptions
	logger *log.Logger

	mu      sync.Mutex
	running *gameRun
}

type gameRun struct {
	version int
	proc    depot.Process
	release func()
	done    chan struct{}
	err     error
}

// NewLauncher creates a launcher
func NewLauncher(opts LauncherOptions) *Launcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Runner == nil {
		opts.Runner = depot.ExecRunner{}
	}
	return &Launcher{opts: opts, logger: logger}
}

// Launch starts the game of a version. prepare runs first, with no game running;
// release is called once the game exits.
func (l *Launcher) Launch(version int, prepare func() error, release func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running != nil {
		return fmt.Errorf("%w: v%d", domain.ErrGameRunning, l.running.version)
	}

	exe, err := FindExecutable(l.opts.Layout.VersionDir(version), l.opts.Executable)
	if err != nil {
		return err
	}
	if prepare != nil {
		if err := prepare(); err != nil {
			return err
		}
	}

	cmd := depot.Command{Path: exe, Dir: filepath.Dir(exe)}
	if len(l.opts.Wrapper) > 0 {
		cmd.Path = l.opts.Wrapper[0]
		cmd.Args = append(append([]string{}, l.opts.Wrapper[1:]...), exe)
		// BepInEx hooks in through winhttp.dll, which Wine must load from the game folder
		cmd.Env = []string{"WINEDLLOVERRIDES=winhttp=n,b"}
	}

	// the game outlives the command that started it
	proc, err := l.opts.Runner.Start(context.Background(), cmd)
	if err != nil {
		return fmt.Errorf("launching v%d: %w", version, err)
	}

	run := &gameRun{version: version, proc: proc, release: release, done: make(chan struct{})}
	l.running = run
	l.logger.Info("game started", "version", version, "exe", exe)
	l.publish(EventGameStarted, version, "")

	go l.watch(run)
	return nil
}

func (l *Launcher) watch(run *gameRun) {
	for line := range run.proc.Lines() {
		l.logger.Debug(line, "version", run.version)
	}
	err := run.proc.Wait()

	l.mu.Lock()
	run.err = err
	if l.running == run {
		l.running = nil
	}
	l.mu.Unlock()

	if run.release != nil {
		run.release()
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.logger.Info("game exited", "version", run.version, "err", err)
	l.publish(EventGameExited, run.version, msg)
	close(run.done)
}

// Status reports whether a game is running
func (l *Launcher) Status() GameStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running == nil {
		return GameStatus{}
	}
	return GameStatus{Running: true, Version: l.running.version}
}

// Stop kills the running game and waits for it to exit. It reports whether a game was running.
func (l *Launcher) Stop() (bool, error) {
	l.mu.Lock()
	run := l.running
	l.mu.Unlock()
	if run == nil {
		return false, nil
	}
	if err := run.proc.Kill(); err != nil {
		return true, fmt.Errorf("stopping v%d: %w", run.version, err)
	}
	<-run.done
	return true, nil
}

// Wait blocks until the running game exits, returning its exit error
func (l *Launcher) Wait(ctx context.Context) error {
	l.mu.Lock()
	run := l.running
	l.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Launcher) publish(name string, version int, msg string) {
	if l.opts.Bus != nil {
		l.opts.Bus.Publish(Event{Name: name, Version: version, Message: msg})
	}
}

// FindExecutable locates name in dir or up to three levels below it
func FindExecutable(dir, name string) (string, error) {
	direct := filepath.Join(dir, name)
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, nil
	}

	var found string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		depth := strings.Count(filepath.ToSlash(rel), "/")
		if d.IsDir() {
			if rel != "." && depth >= exeSearchDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(d.Name(), name) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrNotInstalled, dir)
	}
	if err != nil {
		return "", fmt.Errorf("searching for %s: %w", name, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s not found under %s", domain.ErrNotInstalled, name, dir)
	}
	return found, nil
}
