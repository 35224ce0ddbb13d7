package depot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// SignalKind is the closed set of things the depot tool can tell us.
type SignalKind int

const (
	SignalOutput SignalKind = iota
	SignalProgress
	SignalConnecting
	SignalConnected
	SignalTwoFactorRequired
	SignalMobileConfirmation
	SignalPasswordRequired
	SignalCodeRejected
	SignalCodeMissing
	SignalLoginFailed
	SignalDownloadComplete
)

func (k SignalKind) String() string {
	switch k {
	case SignalProgress:
		return "progress"
	case SignalConnecting:
		return "connecting"
	case SignalConnected:
		return "connected"
	case SignalTwoFactorRequired:
		return "two-factor required"
	case SignalMobileConfirmation:
		return "mobile confirmation"
	case SignalPasswordRequired:
		return "password required"
	case SignalCodeRejected:
		return "code rejected"
	case SignalCodeMissing:
		return "code missing"
	case SignalLoginFailed:
		return "login failed"
	case SignalDownloadComplete:
		return "download complete"
	default:
		return "output"
	}
}

// NeedsAuth reports whether the signal means the tool wants interactive credentials.
func (k SignalKind) NeedsAuth() bool {
	switch k {
	case SignalTwoFactorRequired, SignalMobileConfirmation, SignalPasswordRequired, SignalCodeMissing:
		return true
	}
	return false
}

// ProgressTotal is the denominator of progress signals: the tool reports
// percentages with two decimals, carried as basis points.
const ProgressTotal = 10000

// Signal is one translated output line.
type Signal struct {
	Kind    SignalKind
	Line    string // cleaned line
	Current int64  // progress, basis points
	Total   int64
	Detail  string // file path following a progress percentage
	Bytes   int64  // bytes transferred, from the closing summary
}

// Translator turns raw depot tool output into signals. All text matching lives
// behind this interface; the session and download loops only see signals.
type Translator interface {
	Translate(line string) Signal
}

// DefaultTranslator matches the messages printed by DepotDownloader and its
// IPC-patched builds.
type DefaultTranslator struct{}

var (
	progressLine = regexp.MustCompile(`^\s*(\d{1,3})(?:\.(\d{1,2}))?%\s*(.*)$`)
	totalLine    = regexp.MustCompile(`(?i)^total downloaded:\s*(\d+)\s*bytes`)
)

// Translate classifies a single line.
func (DefaultTranslator) Translate(raw string) Signal {
	line := CleanLine(raw)
	sig := Signal{Kind: SignalOutput, Line: line}
	if line == "" {
		return sig
	}

	if m := progressLine.FindStringSubmatch(line); m != nil {
		whole, _ := strconv.ParseInt(m[1], 10, 64)
		frac := int64(0)
		if m[2] != "" {
			frac, _ = strconv.ParseInt(m[2], 10, 64)
			if len(m[2]) == 1 {
				frac *= 10
			}
		}
		bp := whole*100 + frac
		if bp > ProgressTotal {
			bp = ProgressTotal
		}
		sig.Kind = SignalProgress
		sig.Current = bp
		sig.Total = ProgressTotal
		sig.Detail = strings.TrimSpace(m[3])
		return sig
	}

	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "use the steam mobile app to confirm") ||
		(strings.Contains(l, "confirm") && strings.Contains(l, "sign in")):
		sig.Kind = SignalMobileConfirmation
	case strings.Contains(l, "previous 2-factor auth code") && strings.Contains(l, "incorrect"):
		sig.Kind = SignalCodeRejected
	case strings.Contains(l, "failed to authenticate with steam:") && strings.Contains(l, "no code was provided"):
		sig.Kind = SignalCodeMissing
	case asksForCode(l):
		sig.Kind = SignalTwoFactorRequired
	case strings.Contains(l, "enter") && strings.Contains(l, "password"):
		sig.Kind = SignalPasswordRequired
	case strings.Contains(l, "invalidpassword") || strings.Contains(l, "invalid password") ||
		strings.Contains(l, "ratelimitexceeded") || strings.Contains(l, "failed to authenticate"):
		sig.Kind = SignalLoginFailed
	case strings.Contains(l, "logging") && strings.Contains(l, "done"),
		strings.Contains(l, "got session token"):
		sig.Kind = SignalConnected
	case strings.Contains(l, "connecting to steam3"), strings.HasPrefix(l, "logging"):
		sig.Kind = SignalConnecting
	case strings.HasPrefix(l, "total downloaded:"):
		sig.Kind = SignalDownloadComplete
		if m := totalLine.FindStringSubmatch(line); m != nil {
			sig.Bytes, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}
	return sig
}

func asksForCode(l string) bool {
	// IPC-patched builds print explicit tokens.
	if strings.Contains(l, "steam_guard_device_code_required") ||
		strings.Contains(l, "steam_guard_email_code_required") ||
		strings.Contains(l, "steam_guard_code_required") {
		return true
	}
	return strings.Contains(l, "steam guard") ||
		strings.Contains(l, "steamguard") ||
		strings.Contains(l, "two-factor") ||
		strings.Contains(l, "two factor") ||
		strings.Contains(l, "2fa") ||
		strings.Contains(l, "2 factor") ||
		(strings.Contains(l, "enter") && strings.Contains(l, "code")) ||
		strings.Contains(l, "auth code") ||
		strings.Contains(l, "authentication code") ||
		strings.Contains(l, "emailed")
}

// CleanLine strips terminal escape sequences and carriage returns.
func CleanLine(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimRight(s, " \t\n")
}
