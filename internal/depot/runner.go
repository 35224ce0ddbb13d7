package depot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Command describes one invocation of the depot tool.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the current environment
	Env []string
	// Interactive runs the tool under a pseudo-terminal so prompts that do
	// not end in a newline are still delivered.
	Interactive bool
}

// Process is a running depot tool. Lines is closed once output ends; call
// Wait afterwards for the exit status.
type Process interface {
	Lines() <-chan string
	WriteLine(s string) error
	Wait() error
	Kill() error
}

// Runner starts depot tool processes.
type Runner interface {
	Start(ctx context.Context, c Command) (Process, error)
}

// ExecRunner runs the real executable.
type ExecRunner struct{}

// Start launches the command. Stdout and stderr are merged into one line stream.
func (ExecRunner) Start(ctx context.Context, c Command) (Process, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = 2 * time.Second

	p := &execProcess{
		cmd:   cmd,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}

	if c.Interactive {
		out, in, err := startInteractive(cmd)
		if err != nil {
			return nil, fmt.Errorf("starting %s: %w", c.Path, err)
		}
		p.stdin = in
		go p.read(out)
		go p.wait(func() { out.Close() })
		return p, nil
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", c.Path, err)
	}
	p.stdin = stdin
	go p.read(pr)
	go p.wait(func() { pw.Close() })
	return p, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	mu      sync.Mutex
	done    chan struct{}
	waitErr error
}

func (p *execProcess) Lines() <-chan string { return p.lines }

func (p *execProcess) WriteLine(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return errors.New("process has no stdin")
	}
	_, err := io.WriteString(p.stdin, s+"\n")
	return err
}

func (p *execProcess) Wait() error {
	<-p.done
	return p.waitErr
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if err != nil && errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) wait(closeOutput func()) {
	err := p.cmd.Wait()
	closeOutput()
	p.waitErr = err
	close(p.done)
}

func (p *execProcess) read(r io.Reader) {
	defer close(p.lines)
	var split lineSplitter
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		for _, line := range split.Feed(buf[:n]) {
			p.lines <- line
		}
		if err != nil {
			if rest := split.Flush(); rest != "" {
				p.lines <- rest
			}
			return
		}
	}
}

// discard drains remaining output so the reader goroutine can exit, then reaps the process.
func discard(p Process) error {
	go func() {
		for range p.Lines() {
		}
	}()
	return p.Wait()
}

// lineSplitter splits a byte stream on \n and \r. A trailing fragment that
// looks like an input prompt is released without waiting for a newline.
type lineSplitter struct {
	pending bytes.Buffer
}

func (s *lineSplitter) Feed(b []byte) []string {
	var out []string
	for _, c := range b {
		if c == '\n' || c == '\r' {
			if s.pending.Len() > 0 {
				out = append(out, s.pending.String())
				s.pending.Reset()
			}
			continue
		}
		s.pending.WriteByte(c)
	}
	if looksLikePrompt(s.pending.Bytes()) {
		out = append(out, s.pending.String())
		s.pending.Reset()
	}
	return out
}

func (s *lineSplitter) Flush() string {
	rest := s.pending.String()
	s.pending.Reset()
	return rest
}

func looksLikePrompt(b []byte) bool {
	t := bytes.TrimRight(b, " ")
	if len(t) == 0 || len(t) == len(b) {
		return false
	}
	last := t[len(t)-1]
	return last == ':' || last == '?'
}
