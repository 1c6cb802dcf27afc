package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemFixtures() []ItemRow {
	return []ItemRow{
		{ID: 1, Name: "Maggi Noodles", Aliases: []string{"maggi", "noodles"}},
		{ID: 2, Name: "Maggi Ketchup", Aliases: []string{"ketchup"}},
		{ID: 3, Name: "Amul Milk", Aliases: []string{"milk", "doodh"}},
		{ID: 4, Name: "Parle-G", Aliases: []string{"biscuit"}},
	}
}

func TestRankItemsExactAliasBeatsSubstring(t *testing.T) {
	t.Parallel()

	results := RankItems("maggi", itemFixtures(), 10)
	require.NotEmpty(t, results)

	// "maggi" is an alias of item 1 and a prefix/substring of both Maggi
	// items' names. The exact alias hit must rank alone at the top.
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, ScoreAliasExact, results[0].Score)
	assert.True(t, results[0].Exact)
	for _, r := range results[1:] {
		assert.False(t, r.Exact)
		assert.Less(t, r.Score, ScoreAliasExact)
	}
}

func TestRankItemsExactNameWins(t *testing.T) {
	t.Parallel()

	results := RankItems("  AMUL MILK ", itemFixtures(), 10)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(3), results[0].ID)
	assert.Equal(t, ScoreNameExact, results[0].Score)
	assert.True(t, results[0].Exact)
}

func TestRankItemsTiers(t *testing.T) {
	t.Parallel()

	rows := []ItemRow{
		{ID: 1, Name: "Sugar"},
		{ID: 2, Name: "Sug"},
		{ID: 3, Name: "Brown Sugar"},
		{ID: 4, Name: "Salt", Aliases: []string{"sugar free salt"}},
	}

	results := RankItems("sug", rows, 10)
	require.Len(t, results, 4)
	assert.Equal(t, int64(2), results[0].ID) // exact
	assert.Equal(t, ScoreNameExact, results[0].Score)
	assert.Equal(t, int64(1), results[1].ID) // name prefix
	assert.Equal(t, ScoreNamePrefix, results[1].Score)
	assert.Equal(t, int64(4), results[2].ID) // alias prefix
	assert.Equal(t, ScoreAliasPrefix, results[2].Score)
	assert.Equal(t, int64(3), results[3].ID) // name contains
	assert.Equal(t, ScoreNameContains, results[3].Score)
}

func TestRankItemsStableOrderOnTies(t *testing.T) {
	t.Parallel()

	rows := []ItemRow{
		{ID: 10, Name: "Rice Basmati"},
		{ID: 11, Name: "Rice Sona"},
		{ID: 12, Name: "Rice Broken"},
	}

	results := RankItems("rice", rows, 10)
	require.Len(t, results, 3)
	assert.Equal(t, []int64{10, 11, 12}, []int64{results[0].ID, results[1].ID, results[2].ID})
}

func TestRankItemsLimitAndExclusion(t *testing.T) {
	t.Parallel()

	results := RankItems("maggi", itemFixtures(), 1)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)

	assert.Nil(t, RankItems("cigarette", itemFixtures(), 10))
	assert.Nil(t, RankItems("   ", itemFixtures(), 10))
}

func TestRankItemsDeterministic(t *testing.T) {
	t.Parallel()

	// Idempotence: same input set, same output, call after call.
	first := RankItems("ma", itemFixtures(), 10)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, RankItems("ma", itemFixtures(), 10))
	}

	// Every returned score tier dominates every excluded candidate
	// (excluded candidates score zero by definition).
	for _, r := range first {
		assert.Greater(t, r.Score, 0)
	}
}

func TestRankPartiesHonorificQuery(t *testing.T) {
	t.Parallel()

	rows := []PartyRow{
		{ID: 1, Name: "Ramesh"},
		{ID: 2, Name: "Rakesh"},
		{ID: 3, Name: "Suresh Ramesh"},
	}

	// Query carries an honorific: the party name is a prefix of the query.
	results := RankParties("Ramesh bhai", rows, 10)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, ScoreNameInQueryPrefix, results[0].Score)
	assert.False(t, results[0].Exact)
}

func TestRankPartiesExact(t *testing.T) {
	t.Parallel()

	rows := []PartyRow{
		{ID: 1, Name: "Ramesh"},
		{ID: 2, Name: "Ramesh Kumar"},
	}

	results := RankParties("ramesh", rows, 10)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ID)
	assert.True(t, results[0].Exact)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, ScoreNamePrefix, results[1].Score)
	assert.False(t, results[1].Exact)
}

func TestRankPartiesNameInsideQuery(t *testing.T) {
	t.Parallel()

	rows := []PartyRow{{ID: 1, Name: "Ramesh"}}
	results := RankParties("udhar for Ramesh please", rows, 10)
	require.Len(t, results, 1)
	assert.Equal(t, ScoreNameInQuery, results[0].Score)
}
