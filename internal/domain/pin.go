package domain

import "fmt"

// LatestSentinel in a version pin means "no pin, use latest".
const LatestSentinel = "0.0.0"

// PinKind is the outcome of pin resolution.
type PinKind int

const (
	PinNotApplicable PinKind = iota
	PinLatest
	PinExact
)

func (k PinKind) String() string {
	switch k {
	case PinLatest:
		return "latest"
	case PinExact:
		return "pinned"
	default:
		return "not applicable"
	}
}

// PinDecision says whether a mod applies to a game version and which package version to install.
type PinDecision struct {
	Kind    PinKind
	Version string // set only for PinExact
	Reason  string // set only for PinNotApplicable
}

// Applicable reports whether the mod should be installed at all.
func (d PinDecision) Applicable() bool {
	return d.Kind != PinNotApplicable
}

func (d PinDecision) String() string {
	switch d.Kind {
	case PinExact:
		return "pin " + d.Version
	case PinLatest:
		return "latest"
	default:
		return "not applicable (" + d.Reason + ")"
	}
}

// ResolvePin applies the enabled flag, then the bounds, then threshold pinning:
// the largest pin key not above gameVersion wins.
func ResolvePin(mod ModEntry, gameVersion int) PinDecision {
	if !mod.Enabled {
		return PinDecision{Kind: PinNotApplicable, Reason: "disabled in manifest"}
	}
	if mod.LowBound != nil && gameVersion < *mod.LowBound {
		return PinDecision{Kind: PinNotApplicable, Reason: fmt.Sprintf("requires game version %d or later", *mod.LowBound)}
	}
	if mod.HighBound != nil && gameVersion > *mod.HighBound {
		return PinDecision{Kind: PinNotApplicable, Reason: fmt.Sprintf("supports game version %d at most", *mod.HighBound)}
	}

	best, found := 0, false
	for k := range mod.VersionPins {
		if k <= gameVersion && (!found || k > best) {
			best, found = k, true
		}
	}
	if !found {
		return PinDecision{Kind: PinLatest}
	}
	v := mod.VersionPins[best]
	if v == LatestSentinel {
		return PinDecision{Kind: PinLatest}
	}
	return PinDecision{Kind: PinExact, Version: v}
}
