package ledger

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"pocketbook/internal/core"
)

// FuzzyNameMatch reports whether two counterparty names probably refer to the
// same person. Both names are lowercased and split on whitespace; they match
// when one token set is a subset of the other, or when at least two tokens
// intersect. "Ada L" matches "ada lovelace"; "Ada Lovelace King" matches
// "Ada Lovelace Queen".
func FuzzyNameMatch(typed, candidate string) bool {
	a := tokens(typed)
	b := tokens(candidate)
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	if inter >= 2 {
		return true
	}
	return inter == len(a) || inter == len(b)
}

func tokens(name string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		out[tok] = true
	}
	return out
}

// maxCloseDistance bounds the edit distance treated as a near miss.
const maxCloseDistance = 2

// CloseCounterparties ranks saved counterparties likely meant by a typed
// name: token matches first, then near misses within a small edit distance
// (typos like "Avrahm" for "Avraham"). Results are ordered best match first.
func CloseCounterparties(typed string, saved []core.Counterparty) []core.Counterparty {
	typed = strings.TrimSpace(typed)
	if typed == "" {
		return nil
	}
	lower := strings.ToLower(typed)

	type scored struct {
		cp   core.Counterparty
		dist int
	}
	var out []scored
	for _, cp := range saved {
		if FuzzyNameMatch(typed, cp.Name) {
			out = append(out, scored{cp: cp, dist: 0})
			continue
		}
		if d := levenshtein.ComputeDistance(lower, strings.ToLower(cp.Name)); d <= maxCloseDistance {
			out = append(out, scored{cp: cp, dist: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	matches := make([]core.Counterparty, len(out))
	for i, s := range out {
		matches[i] = s.cp
	}
	return matches
}
