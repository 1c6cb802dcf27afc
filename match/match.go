// Package match ranks free-text queries against a tenant's catalog rows.
// It is a pure function over an in-memory row set: no I/O, deterministic
// for identical input, ties broken by original catalog order.
package match

import (
	"sort"
	"strings"
)

// Score tiers for item ranking. An alias hit always scores below the
// equivalent name hit so a rename-by-alias never shadows a real name.
const (
	ScoreNameExact    = 100
	ScoreAliasExact   = 90
	ScoreNamePrefix   = 70
	ScoreAliasPrefix  = 60
	ScoreNameContains = 40
	ScoreAliasContain = 30
)

// Additional party tiers. Customer names are often spoken with
// honorifics or extra words ("Ramesh bhai"), so the reverse directions
// rank too, below the forward ones.
const (
	ScoreNameInQueryPrefix = 50
	ScoreNameInQuery       = 20
)

// ItemRow is the candidate shape for item ranking.
type ItemRow struct {
	ID      int64
	Name    string
	Aliases []string
}

// PartyRow is the candidate shape for ledger party ranking.
type PartyRow struct {
	ID   int64
	Name string
}

// Result is one ranked candidate, highest confidence first.
type Result struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	// Exact reports a case-folded equality hit (name or alias). Callers
	// use this as a hard gate: with multiple candidates, only an exact
	// top hit may be auto-selected.
	Exact bool `json:"exact"`
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RankItems ranks items against q using the tiered score table and
// returns at most limit results, highest score first.
func RankItems(q string, rows []ItemRow, limit int) []Result {
	query := fold(q)
	if query == "" {
		return nil
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		score, exact := scoreItem(query, row)
		if score == 0 {
			continue
		}
		results = append(results, Result{ID: row.ID, Name: row.Name, Score: score, Exact: exact})
	}
	return truncate(results, limit)
}

// RankParties ranks ledger parties against q. Same contract as
// RankItems but without an alias tier and with the reverse-direction
// party tiers.
func RankParties(q string, rows []PartyRow, limit int) []Result {
	query := fold(q)
	if query == "" {
		return nil
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		score := scoreParty(query, fold(row.Name))
		if score == 0 {
			continue
		}
		results = append(results, Result{
			ID:    row.ID,
			Name:  row.Name,
			Score: score,
			Exact: score == ScoreNameExact,
		})
	}
	return truncate(results, limit)
}

func scoreItem(query string, row ItemRow) (int, bool) {
	name := fold(row.Name)
	if name == query {
		return ScoreNameExact, true
	}
	for _, alias := range row.Aliases {
		if fold(alias) == query {
			return ScoreAliasExact, true
		}
	}
	if strings.HasPrefix(name, query) {
		return ScoreNamePrefix, false
	}
	for _, alias := range row.Aliases {
		if strings.HasPrefix(fold(alias), query) {
			return ScoreAliasPrefix, false
		}
	}
	if strings.Contains(name, query) {
		return ScoreNameContains, false
	}
	for _, alias := range row.Aliases {
		if strings.Contains(fold(alias), query) {
			return ScoreAliasContain, false
		}
	}
	return 0, false
}

func scoreParty(query, name string) int {
	switch {
	case name == query:
		return ScoreNameExact
	case strings.HasPrefix(name, query):
		return ScoreNamePrefix
	case strings.HasPrefix(query, name):
		return ScoreNameInQueryPrefix
	case strings.Contains(name, query):
		return ScoreNameContains
	case strings.Contains(query, name):
		return ScoreNameInQuery
	default:
		return 0
	}
}

func truncate(results []Result, limit int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return nil
	}
	return results
}
