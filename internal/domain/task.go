package domain

// Phase is a step of an install or update task. Phases advance in declaration order.
type Phase int

const (
	PhaseResolvingPlan Phase = iota
	PhaseDownloadingGameFiles
	PhaseInstallingMods
	PhaseApplyingConfigChains
	PhaseFinished
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseResolvingPlan:
		return "resolving plan"
	case PhaseDownloadingGameFiles:
		return "downloading game files"
	case PhaseInstallingMods:
		return "installing mods"
	case PhaseApplyingConfigChains:
		return "applying config chains"
	case PhaseFinished:
		return "finished"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the task has ended.
func (p Phase) IsTerminal() bool {
	return p == PhaseFinished || p == PhaseFailed
}

// TaskMode distinguishes a full install from a mods-only update.
type TaskMode int

const (
	ModeInstall TaskMode = iota
	ModeUpdate
)

func (m TaskMode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "install"
}

// DownloadTask is the in-memory state of one running install or update.
type DownloadTask struct {
	ID              string
	Version         int
	Mode            TaskMode
	Phase           Phase
	StepIndex       int // 1-based
	StepsTotal      int
	StepName        string
	StepProgress    float64 // 0..1 within the current step
	BytesDownloaded int64
	BytesTotal      int64
	CancelRequested bool
	Err             error
}

// OverallPercent combines step counter and step progress into 0..100.
func (t DownloadTask) OverallPercent() float64 {
	if t.Phase == PhaseFinished {
		return 100
	}
	if t.StepsTotal <= 0 || t.StepIndex <= 0 {
		return 0
	}
	p := t.StepProgress
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	pct := (float64(t.StepIndex-1) + p) / float64(t.StepsTotal) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
