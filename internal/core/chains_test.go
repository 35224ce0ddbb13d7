package core_test

import (
	"errors"
	"testing"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEditor struct {
	calls map[string]int
	fail  string
}

func (e *recordingEditor) SetEntry(rel string, _ domain.ConfigEdit) error {
	if e.calls == nil {
		e.calls = make(map[string]int)
	}
	if rel == e.fail {
		return errors.New("disk full")
	}
	e.calls[rel]++
	return nil
}

var (
	lethalFixes  = domain.ModID{Owner: "Dev1537", Name: "LethalFixes"}
	moreCompany  = domain.ModID{Owner: "notnotnotswipez", Name: "MoreCompany"}
	lateCompany  = domain.ModID{Owner: "anon", Name: "LateCompany"}
	unrelatedMod = domain.ModID{Owner: "x753", Name: "More_Suits"}
)

func testChains() *core.ChainResolver {
	return core.NewChainResolver([][]string{
		{"A.cfg", "B.cfg"},
		{"morecompany.cfg", "latecompany.cfg"},
	})
}

func TestChainFor(t *testing.T) {
	r := testChains()

	group, ok := r.ChainFor("./a.CFG")
	require.True(t, ok)
	assert.Equal(t, []string{"A.cfg", "B.cfg"}, group)

	_, ok = r.ChainFor("other.cfg")
	assert.False(t, ok)
}

func TestPropagateEdit_MirrorsToChain(t *testing.T) {
	r := testChains()
	ed := &recordingEditor{}
	edit := domain.ConfigEdit{Section: "General", Key: "X", Value: "1"}

	written, err := r.PropagateEdit(ed, "A.cfg", edit)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A.cfg", "B.cfg"}, written)
	assert.Equal(t, map[string]int{"A.cfg": 1, "B.cfg": 1}, ed.calls)
}

func TestPropagateEdit_UnchainedFileOnly(t *testing.T) {
	r := testChains()
	ed := &recordingEditor{}

	written, err := r.PropagateEdit(ed, "solo.cfg", domain.ConfigEdit{Section: "S", Key: "K", Value: "V"})
	require.NoError(t, err)
	assert.Equal(t, []string{"solo.cfg"}, written)
	assert.Equal(t, map[string]int{"solo.cfg": 1}, ed.calls)
}

func TestPropagateEdit_ExactlyOncePerPath(t *testing.T) {
	r := testChains()
	ed := &recordingEditor{}

	// editing via a differently cased alias must not write the same file twice
	_, err := r.PropagateEdit(ed, "b.cfg", domain.ConfigEdit{Section: "S", Key: "K", Value: "V"})
	require.NoError(t, err)
	assert.Equal(t, 2, len(ed.calls))
	for _, n := range ed.calls {
		assert.Equal(t, 1, n)
	}
}

func TestPropagateEdit_ReportsFailuresAndContinues(t *testing.T) {
	r := testChains()
	ed := &recordingEditor{fail: "A.cfg"}

	written, err := r.PropagateEdit(ed, "B.cfg", domain.ConfigEdit{Section: "S", Key: "K", Value: "V"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A.cfg")
	assert.Equal(t, []string{"B.cfg"}, written)
}

func TestModsSharingChain_ProvisionalThenConfirmed(t *testing.T) {
	r := testChains()
	candidates := []domain.ModID{moreCompany, lateCompany, unrelatedMod}

	got := r.ModsSharingChain(moreCompany, candidates)
	assert.False(t, got.Confirmed)
	assert.Equal(t, []domain.ModID{lateCompany}, got.Mods)
	assert.Equal(t, []string{"morecompany.cfg", "latecompany.cfg"}, got.Paths)

	// Exact listings supersede the name heuristic: LateCompany owns no chained file
	r.SetListing(moreCompany, []string{"MoreCompany.cfg"})
	r.SetListing(lateCompany, []string{"com.anon.latecompany.cfg"})
	r.SetListing(unrelatedMod, nil)

	got = r.ModsSharingChain(moreCompany, candidates)
	assert.True(t, got.Confirmed)
	assert.Empty(t, got.Mods)
}

func TestModsSharingChain_ConfirmedByListing(t *testing.T) {
	r := testChains()
	r.SetListing(lethalFixes, []string{"A.cfg"})
	r.SetListing(unrelatedMod, []string{"b.cfg"})

	got := r.ModsSharingChain(lethalFixes, []domain.ModID{unrelatedMod, lethalFixes})
	assert.True(t, got.Confirmed)
	assert.Equal(t, []domain.ModID{unrelatedMod}, got.Mods)

	paths, confirmed := r.ChainPaths(unrelatedMod)
	assert.True(t, confirmed)
	assert.Equal(t, []string{"A.cfg", "B.cfg"}, paths)
	assert.True(t, r.HasListing(lethalFixes))
	assert.False(t, r.HasListing(moreCompany))
}

func TestAddListing_MergesAndResets(t *testing.T) {
	r := testChains()
	r.AddListing(lethalFixes, nil)
	assert.True(t, r.HasListing(lethalFixes))

	r.AddListing(lethalFixes, []string{"A.cfg"})
	r.AddListing(lethalFixes, []string{"./a.cfg", "other.cfg"})
	paths, confirmed := r.ChainPaths(lethalFixes)
	assert.True(t, confirmed)
	assert.Equal(t, []string{"A.cfg", "B.cfg"}, paths)

	r.ResetListings()
	assert.False(t, r.HasListing(lethalFixes))
}
