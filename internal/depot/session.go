package depot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hq-launcher/hql/internal/domain"
)

// SessionPhase is the state of a login session.
type SessionPhase int

const (
	PhaseIdle SessionPhase = iota
	PhaseCredentialsSubmitted
	PhaseAwaitingTwoFactor
	PhaseAwaitingMobileConfirmation
	PhaseSucceeded
	PhaseFailed
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseCredentialsSubmitted:
		return "credentials submitted"
	case PhaseAwaitingTwoFactor:
		return "awaiting two-factor code"
	case PhaseAwaitingMobileConfirmation:
		return "awaiting mobile confirmation"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// IsTerminal reports whether the session has ended.
func (p SessionPhase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Event is emitted on every session phase change and for each line of tool output.
type Event struct {
	SessionID int64
	Phase     SessionPhase
	Message   string
	Line      string // set for output events only
}

// SessionSnapshot is a copy of a session's state.
type SessionSnapshot struct {
	ID       int64
	Username string
	Phase    SessionPhase
	Message  string
	Err      error
}

type loginSession struct {
	id       int64
	username string
	codes    chan string
	done     chan struct{}
	cancel   context.CancelFunc

	// guarded by Authenticator.mu
	phase   SessionPhase
	message string
	err     error
}

// Authenticator runs interactive depot logins. At most one session is active per process.
type Authenticator struct {
	opts Options

	nextID atomic.Int64
	mu     sync.Mutex
	active *loginSession
	last   *loginSession
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(opts Options) *Authenticator {
	opts = opts.withDefaults()
	if opts.Store == nil {
		opts.Store = &MemoryLoginStore{}
	}
	return &Authenticator{opts: opts}
}

// Start begins a login and returns its session id without waiting for the
// tool, so a code can be submitted before the prompt is seen.
func (a *Authenticator) Start(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, errors.New("username and password are required")
	}

	a.mu.Lock()
	if a.active != nil {
		a.mu.Unlock()
		return 0, domain.ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := &loginSession{
		id:       a.nextID.Add(1),
		username: username,
		codes:    make(chan string, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
		phase:    PhaseCredentialsSubmitted,
		message:  "Logging in as " + username,
	}
	a.active = s
	a.last = s
	a.mu.Unlock()

	a.opts.Logger.Info("starting depot login", "session", s.id, "user", username)
	a.notify(s, PhaseCredentialsSubmitted, s.message)
	go a.run(runCtx, s, password)
	return s.id, nil
}

// SubmitCode hands a Steam Guard code to the session. It is accepted while
// the session is starting up or waiting at the code prompt.
func (a *Authenticator) SubmitCode(id int64, code string) error {
	code = strings.TrimSpace(code)

	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.active
	if s == nil || s.id != id {
		return fmt.Errorf("%w: no login session %d", domain.ErrInvalidSession, id)
	}
	if s.phase != PhaseCredentialsSubmitted && s.phase != PhaseAwaitingTwoFactor {
		return fmt.Errorf("%w: session %d is %s", domain.ErrInvalidSession, id, s.phase)
	}
	if code == "" {
		return errors.New("code is empty")
	}
	select {
	case s.codes <- code:
		a.opts.Logger.Debug("code queued", "session", id, "len", len(code))
		return nil
	default:
		return fmt.Errorf("a code is already pending for session %d", id)
	}
}

// Session returns the active session, or the most recent one if none is active.
func (a *Authenticator) Session() (SessionSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return SessionSnapshot{}, false
	}
	return a.snapshotLocked(a.last), true
}

// Wait blocks until session id ends.
func (a *Authenticator) Wait(ctx context.Context, id int64) (SessionSnapshot, error) {
	a.mu.Lock()
	s := a.last
	a.mu.Unlock()
	if s == nil || s.id != id {
		return SessionSnapshot{}, fmt.Errorf("%w: no login session %d", domain.ErrInvalidSession, id)
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		return SessionSnapshot{}, ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := a.snapshotLocked(s)
	return snap, snap.Err
}

// LoginState returns the remembered login.
func (a *Authenticator) LoginState() (domain.LoginState, error) {
	return a.opts.Store.LoginState()
}

// Logout stops any running session, forgets the login and removes the tool's
// remembered credentials.
func (a *Authenticator) Logout() error {
	a.mu.Lock()
	s := a.active
	a.mu.Unlock()
	if s != nil {
		s.cancel()
		<-s.done
	}

	if err := a.opts.Store.SaveLoginState(domain.LoginState{}); err != nil {
		return fmt.Errorf("clearing login state: %w", err)
	}
	if err := a.opts.Tool.ClearRemembered(); err != nil {
		return fmt.Errorf("removing remembered credentials: %w", err)
	}
	a.opts.Logger.Info("logged out")
	return nil
}

func (a *Authenticator) run(ctx context.Context, s *loginSession, password string) {
	defer s.cancel()

	err := a.login(ctx, s, password)
	if err == nil {
		err = a.opts.Store.SaveLoginState(domain.LoginState{LoggedIn: true, Username: s.username})
		if err != nil {
			err = fmt.Errorf("saving login state: %w", err)
		}
	}
	a.finish(s, err)
}

func (a *Authenticator) login(ctx context.Context, s *loginSession, password string) error {
	dir := filepath.Join(a.opts.Tool.ConfigDir, "_login_check")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating login dir: %w", err)
	}
	defer os.RemoveAll(dir)

	proc, err := a.opts.Runner.Start(ctx, Command{
		Path:        a.opts.Tool.Path,
		Args:        a.opts.Tool.LoginArgs(s.username, password, dir),
		Dir:         a.opts.Tool.ConfigDir,
		Interactive: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSubprocessFailure, err)
	}
	return a.drive(ctx, s, proc)
}

// drive consumes tool signals until the login resolves.
func (a *Authenticator) drive(ctx context.Context, s *loginSession, proc Process) error {
	ticker := time.NewTicker(a.opts.Tick)
	defer ticker.Stop()

	lines := proc.Lines()
	lastOutput := time.Now()
	pending := ""
	codeSent, connected := false, false
	failure := ""

	abort := func(err error) error {
		_ = proc.Kill()
		_ = discard(proc)
		return err
	}
	send := func(code string) error {
		a.opts.Logger.Info("submitting Steam Guard code", "session", s.id, "len", len(code))
		if err := proc.WriteLine(code); err != nil {
			return fmt.Errorf("%w: sending code: %w", domain.ErrSubprocessFailure, err)
		}
		codeSent = true
		lastOutput = time.Now()
		a.setPhase(s, PhaseCredentialsSubmitted, "Code submitted, waiting for Steam")
		return nil
	}
	promptForCode := func() error {
		a.setPhase(s, PhaseAwaitingTwoFactor, "Steam Guard code required")
		if pending == "" {
			return nil
		}
		code := pending
		pending = ""
		return send(code)
	}

	for {
		select {
		case <-ctx.Done():
			return abort(fmt.Errorf("login %w", domain.ErrCancelled))

		case code := <-s.codes:
			if a.phaseOf(s) == PhaseAwaitingTwoFactor && !codeSent {
				if err := send(code); err != nil {
					return abort(err)
				}
				continue
			}
			pending = code

		case line, ok := <-lines:
			if !ok {
				werr := proc.Wait()
				switch {
				case werr == nil || connected:
					return nil
				case failure != "":
					return fmt.Errorf("%w: %s", ErrLoginRejected, failure)
				default:
					return fmt.Errorf("%w: %w", domain.ErrSubprocessFailure, werr)
				}
			}
			lastOutput = time.Now()

			sig := a.opts.Translator.Translate(line)
			if sig.Line == "" {
				continue
			}
			a.opts.Logger.Debug(sig.Line, "session", s.id, "signal", sig.Kind)
			a.opts.Notify(Event{SessionID: s.id, Phase: a.phaseOf(s), Line: sig.Line})

			switch sig.Kind {
			case SignalTwoFactorRequired:
				if codeSent {
					return abort(ErrCodeRejected)
				}
				if err := promptForCode(); err != nil {
					return abort(err)
				}
			case SignalMobileConfirmation:
				a.setPhase(s, PhaseAwaitingMobileConfirmation,
					fmt.Sprintf("Approve the sign in with the Steam mobile app (session %d)", s.id))
			case SignalCodeRejected:
				return abort(ErrCodeRejected)
			case SignalCodeMissing:
				if codeSent {
					return abort(ErrCodeRejected)
				}
				return abort(fmt.Errorf("%w: two-factor code required", domain.ErrAuthRequired))
			case SignalPasswordRequired:
				return abort(fmt.Errorf("%w: password not accepted", ErrLoginRejected))
			case SignalLoginFailed:
				failure = sig.Line
			case SignalConnected:
				connected = true
			}

		case <-ticker.C:
			silent := time.Since(lastOutput)
			if !codeSent && !connected && silent >= a.opts.PromptIdle && a.phaseOf(s) == PhaseCredentialsSubmitted {
				// Code prompts are printed without a newline on some platforms.
				if err := promptForCode(); err != nil {
					return abort(err)
				}
			}
			if silent >= a.opts.LoginTimeout {
				return abort(fmt.Errorf("%w: login timed out", domain.ErrSubprocessFailure))
			}
		}
	}
}

func (a *Authenticator) phaseOf(s *loginSession) SessionPhase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return s.phase
}

func (a *Authenticator) setPhase(s *loginSession, phase SessionPhase, msg string) {
	a.mu.Lock()
	changed := s.phase != phase || s.message != msg
	s.phase = phase
	s.message = msg
	a.mu.Unlock()
	if changed {
		a.notify(s, phase, msg)
	}
}

func (a *Authenticator) finish(s *loginSession, err error) {
	phase, msg := PhaseSucceeded, "Logged in as "+s.username
	if err != nil {
		phase, msg = PhaseFailed, err.Error()
		a.opts.Logger.Warn("depot login failed", "session", s.id, "err", err)
	} else {
		a.opts.Logger.Info("depot login succeeded", "session", s.id)
	}

	a.mu.Lock()
	s.phase = phase
	s.message = msg
	s.err = err
	if a.active == s {
		a.active = nil
	}
	a.mu.Unlock()

	close(s.done)
	a.notify(s, phase, msg)
}

func (a *Authenticator) notify(s *loginSession, phase SessionPhase, msg string) {
	a.opts.Notify(Event{SessionID: s.id, Phase: phase, Message: msg})
}

func (a *Authenticator) snapshotLocked(s *loginSession) SessionSnapshot {
	return SessionSnapshot{ID: s.id, Username: s.username, Phase: s.phase, Message: s.message, Err: s.err}
}

// MemoryLoginStore keeps the login state in memory.
type MemoryLoginStore struct {
	mu    sync.Mutex
	state domain.LoginState
}

func (m *MemoryLoginStore) LoginState() (domain.LoginState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryLoginStore) SaveLoginState(state domain.LoginState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}
