// Package compare diffs two validation runs: which catalogs changed status,
// which appeared or disappeared, and whether the run got better or worse.
package compare

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/conecheck/conecheck/pkg/defaults"
)

// Verdicts.
const (
	VerdictImproved  = "improved"
	VerdictRegressed = "regressed"
	VerdictUnchanged = "unchanged"
)

// Change is a catalog present in both runs under different statuses.
type Change struct {
	Name   string `json:"name"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Improved reports whether the catalog moved to a better status.
func (c Change) Improved() bool { return rank(c.After) < rank(c.Before) }

// Result holds the full comparison output.
type Result struct {
	BeforeCounts map[string]int `json:"before_counts"`
	AfterCounts  map[string]int `json:"after_counts"`
	StatusDeltas map[string]int `json:"status_deltas"`
	Improved     []Change       `json:"improved"`
	Regressed    []Change       `json:"regressed"`
	Added        []string       `json:"added"`
	Removed      []string       `json:"removed"`
	Verdict      string         `json:"verdict"`
}

// rank orders statuses from best to worst.
func rank(status string) int {
	if i := slices.Index(defaults.Statuses(), status); i >= 0 {
		return i
	}
	return len(defaults.Statuses())
}

// Compare diffs two runs given as status -> catalog names, the shape of
// inspect.ConeSearchResults.CatKeys. Nil maps are empty runs.
func Compare(before, after map[string][]string) *Result {
	b, a := index(before), index(after)
	r := &Result{
		BeforeCounts: counts(before),
		AfterCounts:  counts(after),
	}
	r.StatusDeltas = computeDeltas(r.BeforeCounts, r.AfterCounts)

	for name, was := range b {
		now, ok := a[name]
		switch {
		case !ok:
			r.Removed = append(r.Removed, name)
		case now == was:
		case rank(now) < rank(was):
			r.Improved = append(r.Improved, Change{Name: name, Before: was, After: now})
		default:
			r.Regressed = append(r.Regressed, Change{Name: name, Before: was, After: now})
		}
	}
	for name := range a {
		if _, ok := b[name]; !ok {
			r.Added = append(r.Added, name)
		}
	}
	slices.Sort(r.Added)
	slices.Sort(r.Removed)
	byName := func(x, y Change) int { return strings.Compare(x.Name, y.Name) }
	slices.SortFunc(r.Improved, byName)
	slices.SortFunc(r.Regressed, byName)

	switch {
	case len(r.Regressed) > len(r.Improved):
		r.Verdict = VerdictRegressed
	case len(r.Improved) > len(r.Regressed):
		r.Verdict = VerdictImproved
	default:
		r.Verdict = VerdictUnchanged
	}
	return r
}

// index maps each catalog name to its status. A name filed twice keeps the
// worse status.
func index(keys map[string][]string) map[string]string {
	out := make(map[string]string)
	for status, names := range keys {
		for _, n := range names {
			if prev, ok := out[n]; !ok || rank(status) > rank(prev) {
				out[n] = status
			}
		}
	}
	return out
}

func counts(keys map[string][]string) map[string]int {
	out := make(map[string]int, len(defaults.Statuses()))
	for _, status := range defaults.Statuses() {
		out[status] = len(keys[status])
	}
	return out
}

// computeDeltas returns (after[key] - before[key]) for all keys in both maps.
func computeDeltas(before, after map[string]int) map[string]int {
	deltas := make(map[string]int)
	for k, v := range before {
		deltas[k] = -v
	}
	for k, v := range after {
		deltas[k] += v
	}
	return deltas
}

// Write renders the result as text:
//
//	good: 10 -> 12 (+2)
//	...
//	improved: Foo 1 (warn -> good)
//	verdict: improved
func (r *Result) Write(w io.Writer) error {
	var b strings.Builder
	for _, status := range defaults.Statuses() {
		fmt.Fprintf(&b, "%s: %d -> %d (%+d)\n", status, r.BeforeCounts[status], r.AfterCounts[status], r.StatusDeltas[status])
	}
	for _, c := range r.Improved {
		fmt.Fprintf(&b, "improved: %s (%s -> %s)\n", c.Name, c.Before, c.After)
	}
	for _, c := range r.Regressed {
		fmt.Fprintf(&b, "regressed: %s (%s -> %s)\n", c.Name, c.Before, c.After)
	}
	for _, n := range r.Added {
		fmt.Fprintf(&b, "added: %s\n", n)
	}
	for _, n := range r.Removed {
		fmt.Fprintf(&b, "removed: %s\n", n)
	}
	fmt.Fprintf(&b, "verdict: %s\n", r.Verdict)
	_, err := io.WriteString(w, b.String())
	return err
}
