package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Canceller stops the running task of a version
type Canceller interface {
	Cancel(version int) error
}

// Options configures the progress view
type Options struct {
	Version int
	// Task is the state returned when the task was started. Zero for update checks.
	Task domain.DownloadTask
	// Check shows an update check instead of an install or update task
	Check     bool
	Events    <-chan core.Event
	Canceller Canceller
	KeyMode   string
}

// EventMsg wraps a bus event
type EventMsg struct {
	Event core.Event
}

// closedMsg is sent when the subscription ends
type closedMsg struct{}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// App follows one install, update or update check until it ends
type App struct {
	opts Options
	keys *KeyMap
	bar  progress.Model

	task      domain.DownloadTask
	percent   float64
	checked   int
	total     int
	updatable []domain.ModID

	message string
	notice  string
	done    bool
	failed  bool
	help    bool
	width   int
}

// NewApp creates the progress view
func NewApp(opts Options) App {
	task := opts.Task
	if task.Version == 0 {
		task.Version = opts.Version
	}
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 60
	return App{
		opts:  opts,
		keys:  NewKeyMap(opts.KeyMode),
		bar:   bar,
		task:  task,
		width: 80,
	}
}

// Done reports whether the observed operation has ended
func (a App) Done() bool {
	return a.done
}

// Failed returns the user-facing failure message, if the operation failed
func (a App) Failed() (string, bool) {
	return a.message, a.failed
}

// Task returns the last known task state
func (a App) Task() domain.DownloadTask {
	return a.task
}

// Percent returns overall progress in 0..100
func (a App) Percent() float64 {
	return a.percent
}

// Updatable returns the mods found by the update check
func (a App) Updatable() []domain.ModID {
	return a.updatable
}

// Init implements tea.Model
func (a App) Init() tea.Cmd {
	return a.waitForEvent()
}

func (a App) waitForEvent() tea.Cmd {
	events := a.opts.Events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return EventMsg{Event: e}
	}
}

// Update implements tea.Model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.bar.Width = min(msg.Width-4, 80)
		return a, nil

	case EventMsg:
		if a.apply(msg.Event) {
			return a, tea.Quit
		}
		return a, a.waitForEvent()

	case closedMsg:
		return a, tea.Quit
	}

	return a, nil
}

func (a App) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.IsQuit(msg):
		return a, tea.Quit

	case a.keys.IsHelp(msg):
		a.help = !a.help
		return a, nil

	case a.keys.IsCancel(msg):
		if a.done || a.opts.Check || a.opts.Canceller == nil {
			return a, nil
		}
		if err := a.opts.Canceller.Cancel(a.opts.Version); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotCancellable):
				a.notice = "Only the game download can be cancelled"
			case errors.Is(err, domain.ErrNoActiveTask):
				a.notice = "Nothing to cancel"
			default:
				a.notice = err.Error()
			}
			return a, nil
		}
		a.task.CancelRequested = true
		a.notice = "Cancelling..."
		return a, nil
	}
	return a, nil
}

// apply folds an event into the view state and reports whether the view should close
func (a *App) apply(e core.Event) bool {
	if e.Version != a.opts.Version {
		return false
	}
	if a.task.ID != "" && e.TaskID != "" && e.TaskID != a.task.ID {
		return false
	}

	switch e.Name {
	case core.EventDownloadProgress, core.EventDownloadFinished, core.EventDownloadError:
		if a.opts.Check {
			return false
		}
		a.task.Phase = e.Phase
		a.task.StepIndex = e.Step
		a.task.StepsTotal = e.StepsTotal
		a.task.StepName = e.StepName
		a.task.BytesDownloaded = e.BytesDownloaded
		a.task.BytesTotal = e.BytesTotal
		a.percent = e.Percent
		if e.Name == core.EventDownloadFinished {
			a.done = true
			a.percent = 100
			return true
		}
		if e.Name == core.EventDownloadError {
			a.done = true
			a.failed = true
			a.message = e.Message
			return true
		}

	case core.EventUpdatableProgress:
		a.checked, a.total = e.Checked, e.Total
		a.updatable = e.Updatable
		if a.opts.Check && e.Total > 0 {
			a.percent = float64(e.Checked) / float64(e.Total) * 100
		}

	case core.EventUpdatableFinished, core.EventUpdatableError:
		a.updatable = e.Updatable
		a.checked = a.total
		if e.Name == core.EventUpdatableError {
			a.message = e.Message
		}
		if a.opts.Check {
			a.done = true
			a.failed = e.Name == core.EventUpdatableError
			a.percent = 100
			return true
		}
	}
	return false
}

func (a App) cancellable() bool {
	return !a.done && !a.opts.Check && a.task.Mode == domain.ModeInstall &&
		a.task.Phase == domain.PhaseDownloadingGameFiles && !a.task.CancelRequested
}

// View implements tea.Model
func (a App) View() string {
	var b strings.Builder

	if a.opts.Check {
		b.WriteString(titleStyle.Render(fmt.Sprintf("hql · v%d update check", a.opts.Version)))
	} else {
		b.WriteString(titleStyle.Render(fmt.Sprintf("hql · v%d %s", a.opts.Version, a.task.Mode)))
	}
	b.WriteString("\n\n")

	b.WriteString(a.statusLine())
	b.WriteString("\n")
	b.WriteString(a.bar.ViewAs(a.percent / 100))
	b.WriteString("\n")

	if detail := a.detailLine(); detail != "" {
		b.WriteString(dimStyle.Render(detail))
		b.WriteString("\n")
	}

	switch {
	case a.failed:
		b.WriteString("\n" + errStyle.Render(a.message) + "\n")
	case a.done:
		b.WriteString("\n" + okStyle.Render(a.doneLine()) + "\n")
	case a.notice != "":
		b.WriteString("\n" + noticeStyle.Render(a.notice) + "\n")
	}

	b.WriteString("\n")
	if a.help {
		b.WriteString(dimStyle.Render(a.keys.FullHelp()))
	} else {
		b.WriteString(dimStyle.Render(a.keys.ShortHelp(a.cancellable())))
	}
	b.WriteString("\n")
	return b.String()
}

func (a App) statusLine() string {
	if a.opts.Check {
		if a.total == 0 {
			return "Checking for updates"
		}
		return fmt.Sprintf("Checking for updates (%d/%d)", a.checked, a.total)
	}
	status := a.task.Phase.String()
	if a.task.StepsTotal > 0 && a.task.StepIndex > 0 {
		status = fmt.Sprintf("%s (step %d/%d)", status, a.task.StepIndex, a.task.StepsTotal)
	}
	return status
}

func (a App) detailLine() string {
	if a.opts.Check {
		if len(a.updatable) == 0 {
			return ""
		}
		return fmt.Sprintf("%d update(s) found", len(a.updatable))
	}
	parts := []string{}
	if a.task.StepName != "" {
		parts = append(parts, a.task.StepName)
	}
	if a.task.BytesTotal > 0 {
		parts = append(parts, fmt.Sprintf("%s / %s",
			humanize.Bytes(uint64(a.task.BytesDownloaded)), humanize.Bytes(uint64(a.task.BytesTotal))))
	}
	return strings.Join(parts, "  ")
}

func (a App) doneLine() string {
	if !a.opts.Check {
		return fmt.Sprintf("v%d %s finished", a.opts.Version, a.task.Mode)
	}
	if len(a.updatable) == 0 {
		return "Everything is up to date"
	}
	names := make([]string, len(a.updatable))
	for i, id := range a.updatable {
		names[i] = id.String()
	}
	return "Updates available: " + strings.Join(names, ", ")
}

// Run shows the progress view until the operation ends or the user closes it
func Run(ctx context.Context, opts Options) (App, error) {
	p := tea.NewProgram(NewApp(opts), tea.WithContext(ctx))
	model, err := p.Run()
	if err != nil {
		return App{}, err
	}
	return model.(App), nil
}
