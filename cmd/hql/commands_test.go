package main

import (
	"bytes"
	"testing"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntryKey(t *testing.T) {
	section, key, err := parseEntryKey("General.MaxPlayers")
	require.NoError(t, err)
	assert.Equal(t, "General", section)
	assert.Equal(t, "MaxPlayers", key)

	section, key, err = parseEntryKey("Ship.Door.Speed")
	require.NoError(t, err)
	assert.Equal(t, "Ship", section)
	assert.Equal(t, "Door.Speed", key)

	for _, bad := range []string{"General", ".Key", "General."} {
		_, _, err := parseEntryKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "ab", maskUsername("ab"))
	assert.Equal(t, "st****am", maskUsername("steamxam"))
}

func TestProgressLine(t *testing.T) {
	e := core.Event{
		Phase:      domain.PhaseDownloadingGameFiles,
		Step:       1,
		StepsTotal: 4,
		StepName:   "game files",
		BytesTotal: 2_000_000,
	}
	assert.Equal(t, "[1/4] downloading game files: game files (2.0 MB)", progressLine(e))

	assert.Equal(t, "resolving plan", progressLine(core.Event{Phase: domain.PhaseResolvingPlan}))
}

func TestPrintProgress_OneLinePerStep(t *testing.T) {
	events := make(chan core.Event, 8)
	step := func(phase domain.Phase, n int, name string) core.Event {
		return core.Event{Name: core.EventDownloadProgress, Phase: phase, Step: n, StepsTotal: 3, StepName: name}
	}
	events <- step(domain.PhaseDownloadingGameFiles, 1, "game files")
	events <- step(domain.PhaseDownloadingGameFiles, 1, "game files")
	events <- step(domain.PhaseInstallingMods, 2, "BepInEx-BepInExPack 5.4.2304")
	events <- core.Event{Name: core.EventUpdatableFinished, Updatable: []domain.ModID{{Owner: "a", Name: "b"}}}
	events <- step(domain.PhaseApplyingConfigChains, 3, "")
	close(events)

	var out bytes.Buffer
	printProgress(&out, events)

	assert.Equal(t, "[1/3] downloading game files: game files\n"+
		"[2/3] installing mods: BepInEx-BepInExPack 5.4.2304\n"+
		"1 mod(s) to update\n"+
		"[3/3] applying config chains\n", out.String())
}
