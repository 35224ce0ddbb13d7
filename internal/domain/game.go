package domain

import "time"

// LinkMethod determines how a version's config directory is tied to the shared one
type LinkMethod int

const (
	LinkSymlink  LinkMethod = iota // Default: symlink the whole directory
	LinkHardlink                   // Hardlink every file into a real directory
	LinkCopy                       // Copy (maximum compatibility, no live sharing)
)

func (m LinkMethod) String() string {
	switch m {
	case LinkSymlink:
		return "symlink"
	case LinkHardlink:
		return "hardlink"
	case LinkCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// ParseLinkMethod converts a string to LinkMethod
func ParseLinkMethod(s string) LinkMethod {
	switch s {
	case "hardlink":
		return LinkHardlink
	case "copy":
		return LinkCopy
	default:
		return LinkSymlink
	}
}

// LoginState is the remembered depot login.
type LoginState struct {
	LoggedIn bool
	Username string
}

// InstalledMod is one mod recorded as installed for a game version.
type InstalledMod struct {
	ID              ModID
	Version         string
	PreviousVersion string // version replaced by the last update, if any
	Enabled         bool
	InstalledAt     time.Time
}

// ConfigLinkState reports whether a version's config directory points at the shared one.
type ConfigLinkState int

const (
	ConfigUnlinked ConfigLinkState = iota
	ConfigLinked
)

func (s ConfigLinkState) String() string {
	if s == ConfigLinked {
		return "linked"
	}
	return "unlinked"
}

// ConfigEdit sets one entry of an INI-style config file.
type ConfigEdit struct {
	Section string
	Key     string
	Value   string
}
