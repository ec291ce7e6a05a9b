package compare

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecheck/conecheck/pkg/testutil"
)

var before = map[string][]string{
	"good":      {"A 1", "B 1"},
	"warn":      {"C 1"},
	"exception": {"D 1"},
	"error":     {"Gone 1"},
}

func TestCompare(t *testing.T) {
	t.Parallel()
	after := map[string][]string{
		"good":  {"A 1", "C 1", "D 1"},
		"warn":  {"B 1"},
		"error": {"New 1"},
	}
	r := Compare(before, after)

	assert.Equal(t, []Change{
		{Name: "C 1", Before: "warn", After: "good"},
		{Name: "D 1", Before: "exception", After: "good"},
	}, r.Improved)
	assert.Equal(t, []Change{{Name: "B 1", Before: "good", After: "warn"}}, r.Regressed)
	assert.Equal(t, []string{"New 1"}, r.Added)
	assert.Equal(t, []string{"Gone 1"}, r.Removed)
	assert.Equal(t, VerdictImproved, r.Verdict)
	assert.Equal(t, map[string]int{"good": 1, "warn": 0, "exception": -1, "error": 0}, r.StatusDeltas)
	assert.True(t, r.Improved[0].Improved())
	assert.False(t, r.Regressed[0].Improved())
}

func TestCompare_Verdicts(t *testing.T) {
	t.Parallel()
	assert.Equal(t, VerdictUnchanged, Compare(before, before).Verdict)
	assert.Equal(t, VerdictUnchanged, Compare(nil, nil).Verdict)

	worse := map[string][]string{"error": {"A 1", "B 1", "C 1", "D 1", "Gone 1"}}
	r := Compare(before, worse)
	assert.Equal(t, VerdictRegressed, r.Verdict)
	assert.Len(t, r.Regressed, 4)
	assert.Empty(t, r.Added)
}

func TestCompare_DuplicateNameKeepsWorse(t *testing.T) {
	t.Parallel()
	idx := index(map[string][]string{"good": {"A 1"}, "error": {"A 1"}})
	assert.Equal(t, "error", idx["A 1"])
}

func TestResult_Write(t *testing.T) {
	t.Parallel()
	r := Compare(before, map[string][]string{
		"good":      {"A 1", "B 1", "C 1"},
		"exception": {"D 1"},
		"error":     {"Gone 1"},
	})
	var b strings.Builder
	require.NoError(t, r.Write(&b))
	assert.Equal(t, `good: 2 -> 3 (+1)
warn: 1 -> 0 (-1)
exception: 1 -> 1 (+0)
error: 1 -> 1 (+0)
improved: C 1 (warn -> good)
verdict: improved
`, b.String())

	assert.ErrorIs(t, r.Write(&testutil.FailingWriter{}), testutil.ErrFault)
}
