package depot

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeProcess struct {
	lines   chan string
	written chan string
	done    chan struct{}

	once    sync.Once
	mu      sync.Mutex
	killed  bool
	waitErr error
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		lines:   make(chan string, 32),
		written: make(chan string, 8),
		done:    make(chan struct{}),
	}
}

func (p *fakeProcess) Lines() <-chan string { return p.lines }

func (p *fakeProcess) WriteLine(s string) error {
	p.written <- s
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.done
	return p.waitErr
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(errors.New("signal: killed"))
	return nil
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) emit(lines ...string) {
	for _, l := range lines {
		p.lines <- l
	}
}

func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.waitErr = err
		close(p.lines)
		close(p.done)
	})
}

type fakeRunner struct {
	proc    *fakeProcess
	started chan Command
	err     error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{proc: newFakeProcess(), started: make(chan Command, 4)}
}

func (r *fakeRunner) Start(_ context.Context, c Command) (Process, error) {
	r.started <- c
	if r.err != nil {
		return nil, r.err
	}
	return r.proc, nil
}

func recv[T any](ch <-chan T, d time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		var zero T
		return zero, false
	}
}
