package depot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hq-launcher/hql/internal/domain"
)

const (
	DefaultAppID   = "1966720"
	DefaultDepotID = "1966721"

	// ipcMarker next to the executable marks a patched build that understands -ipc.
	ipcMarker = ".hql_ipc"
)

var (
	ErrCodeRejected  = errors.New("steam guard code was rejected or expired")
	ErrLoginRejected = errors.New("steam rejected the login")
	ErrToolMissing   = errors.New("depot tool not installed")
)

// Tool locates the depot tool and the directory it keeps remembered logins in.
type Tool struct {
	Path      string
	ConfigDir string
	AppID     string
	DepotID   string
}

func (t Tool) withDefaults() Tool {
	if t.AppID == "" {
		t.AppID = DefaultAppID
	}
	if t.DepotID == "" {
		t.DepotID = DefaultDepotID
	}
	return t
}

// Check verifies the executable exists.
func (t Tool) Check() error {
	if t.Path == "" {
		return fmt.Errorf("%w: depot_downloader_path is not set", ErrToolMissing)
	}
	if _, err := os.Stat(t.Path); err != nil {
		return fmt.Errorf("%w: %s", ErrToolMissing, t.Path)
	}
	return nil
}

func (t Tool) ipc() bool {
	_, err := os.Stat(filepath.Join(filepath.Dir(t.Path), ipcMarker))
	return err == nil
}

// LoginArgs builds the arguments for a credential check that fetches only the manifest.
func (t Tool) LoginArgs(username, password, dir string) []string {
	t = t.withDefaults()
	args := []string{
		"-app", t.AppID,
		"-depot", t.DepotID,
		"-manifest-only",
		"-dir", dir,
		"-username", username,
		"-password", password,
		"-remember-password",
	}
	if t.ipc() {
		args = append([]string{"-ipc"}, args...)
	}
	return args
}

// DownloadArgs builds the arguments for a depot download using the remembered login.
func (t Tool) DownloadArgs(username, manifestID, dir string) []string {
	t = t.withDefaults()
	args := []string{
		"-app", t.AppID,
		"-depot", t.DepotID,
		"-dir", dir,
		"-username", username,
		"-remember-password",
	}
	if manifestID != "" {
		args = append(args, "-manifest", manifestID)
	}
	if t.ipc() {
		args = append([]string{"-ipc"}, args...)
	}
	return args
}

// ClearRemembered deletes the tool's saved credentials and sentry files.
func (t Tool) ClearRemembered() error {
	entries, err := os.ReadDir(t.ConfigDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading depot config dir: %w", err)
	}

	var errs []error
	for _, e := range entries {
		name := e.Name()
		if name == "config.vdf" || name == ".DepotDownloader" || strings.HasPrefix(name, "ssfn") {
			if err := os.RemoveAll(filepath.Join(t.ConfigDir, name)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// LoginStore persists the remembered login.
type LoginStore interface {
	LoginState() (domain.LoginState, error)
	SaveLoginState(state domain.LoginState) error
}

// Options configures the authenticator and downloader.
type Options struct {
	Tool       Tool
	Runner     Runner
	Translator Translator
	Store      LoginStore
	Logger     *log.Logger
	Notify     func(Event)

	// PromptIdle is how long the tool may stay silent during login before we
	// assume it is waiting at a code prompt that did not end in a newline.
	PromptIdle time.Duration
	// LoginTimeout fails a login after this much silence.
	LoginTimeout time.Duration
	// StallBeforeProgress: silence before any progress means the tool is
	// waiting for credentials.
	StallBeforeProgress time.Duration
	// StallAfterProgress: silence after progress started means the download hung.
	StallAfterProgress time.Duration
	// Tick is how often idle timers are checked.
	Tick time.Duration
}

func (o Options) withDefaults() Options {
	o.Tool = o.Tool.withDefaults()
	if o.Runner == nil {
		o.Runner = ExecRunner{}
	}
	if o.Translator == nil {
		o.Translator = DefaultTranslator{}
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.Notify == nil {
		o.Notify = func(Event) {}
	}
	if o.PromptIdle <= 0 {
		o.PromptIdle = 8 * time.Second
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = 90 * time.Second
	}
	if o.StallBeforeProgress <= 0 {
		o.StallBeforeProgress = 15 * time.Second
	}
	if o.StallAfterProgress <= 0 {
		o.StallAfterProgress = 5 * time.Minute
	}
	if o.Tick <= 0 {
		o.Tick = 250 * time.Millisecond
	}
	return o
}
