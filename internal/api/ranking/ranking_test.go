package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placepal/placepal/internal/types"
)

func metersPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool         { return &v }

func candidate(id string, dist float64, rating float64, reviews int) types.PlaceCandidate {
	return types.PlaceCandidate{
		PlaceID:        id,
		Name:           id,
		Rating:         rating,
		ReviewCount:    reviews,
		DistanceMeters: metersPtr(dist),
	}
}

func TestRank(t *testing.T) {
	t.Run("CloserWinsWhenOtherwiseEqual", func(t *testing.T) {
		ranked := Rank([]types.PlaceCandidate{
			candidate("far", 4000, 4.0, 100),
			candidate("near", 500, 4.0, 100),
		}, Input{})

		require.Len(t, ranked, 2)
		assert.Equal(t, "near", ranked[0].Candidate.PlaceID)
		assert.Greater(t, ranked[0].Score, ranked[1].Score)
	})

	t.Run("HigherRatedWinsWhenOtherwiseEqual", func(t *testing.T) {
		ranked := Rank([]types.PlaceCandidate{
			{PlaceID: "meh", Name: "meh", Rating: 3.2, ReviewCount: 100},
			{PlaceID: "good", Name: "good", Rating: 4.8, ReviewCount: 100},
		}, Input{})

		assert.Equal(t, "good", ranked[0].Candidate.PlaceID)
	})

	t.Run("ReviewVolumeHasDiminishingReturns", func(t *testing.T) {
		// A single 5-star review must not outrank an established 4.6.
		ranked := Rank([]types.PlaceCandidate{
			{PlaceID: "one-review", Name: "one-review", Rating: 5.0, ReviewCount: 1},
			{PlaceID: "established", Name: "established", Rating: 4.6, ReviewCount: 800},
		}, Input{})

		assert.Equal(t, "established", ranked[0].Candidate.PlaceID)
	})

	t.Run("OpenNowBoostsScore", func(t *testing.T) {
		open := candidate("open", 1000, 4.0, 50)
		open.OpenNow = boolPtr(true)
		closed := candidate("closed", 1000, 4.0, 50)
		closed.OpenNow = boolPtr(false)

		ranked := Rank([]types.PlaceCandidate{closed, open}, Input{})

		assert.Equal(t, "open", ranked[0].Candidate.PlaceID)
		assert.InDelta(t, 0.1, ranked[0].Score-ranked[1].Score, 1e-9)
	})

	t.Run("CommunityBoostIsCapped", func(t *testing.T) {
		base := candidate("a", 1000, 4.0, 50)
		without := Rank([]types.PlaceCandidate{base}, Input{})
		with := Rank([]types.PlaceCandidate{base}, Input{
			Community: map[string]types.CommunitySignal{
				"a": {AvgRating: 5.0, Count: 100000},
			},
		})

		boost := with[0].Score - without[0].Score
		assert.Greater(t, boost, 0.0)
		assert.LessOrEqual(t, boost, 0.3+1e-9)
	})

	t.Run("StableOrderOnTies", func(t *testing.T) {
		a := candidate("first", 1000, 4.0, 50)
		b := candidate("second", 1000, 4.0, 50)

		ranked := Rank([]types.PlaceCandidate{a, b}, Input{})

		assert.Equal(t, "first", ranked[0].Candidate.PlaceID)
		assert.Equal(t, "second", ranked[1].Candidate.PlaceID)
	})

	t.Run("Deterministic", func(t *testing.T) {
		cands := []types.PlaceCandidate{
			candidate("a", 300, 4.4, 120),
			candidate("b", 2500, 4.9, 30),
			candidate("c", 900, 3.8, 410),
		}
		first := Rank(cands, Input{})
		for range 10 {
			assert.Equal(t, first, Rank(cands, Input{}))
		}
	})

	t.Run("ExplanationReflectsScoredFacts", func(t *testing.T) {
		cand := candidate("a", 450, 4.5, 230)
		cand.OpenNow = boolPtr(true)

		ranked := Rank([]types.PlaceCandidate{cand}, Input{})

		require.Len(t, ranked, 1)
		assert.Contains(t, ranked[0].Explanation, "450m away")
		assert.Contains(t, ranked[0].Explanation, "rated 4.5")
		assert.Contains(t, ranked[0].Explanation, "230 reviews")
		assert.Contains(t, ranked[0].Explanation, "open now")
	})

	t.Run("MissingDistanceScoresZeroForDistance", func(t *testing.T) {
		noDist := types.PlaceCandidate{PlaceID: "nd", Name: "nd", Rating: 4.0, ReviewCount: 50}
		withDist := candidate("wd", 200, 4.0, 50)

		ranked := Rank([]types.PlaceCandidate{noDist, withDist}, Input{})

		assert.Equal(t, "wd", ranked[0].Candidate.PlaceID)
	})
}

func TestTopPicks(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		primary, alternatives := TopPicks(nil)
		assert.Nil(t, primary)
		assert.Empty(t, alternatives)
	})

	t.Run("PrimaryPlusAtMostTwoAlternatives", func(t *testing.T) {
		ranked := Rank([]types.PlaceCandidate{
			candidate("a", 100, 4.9, 400),
			candidate("b", 200, 4.5, 300),
			candidate("c", 300, 4.2, 200),
			candidate("d", 400, 4.0, 100),
		}, Input{})

		primary, alternatives := TopPicks(ranked)

		require.NotNil(t, primary)
		assert.Equal(t, "a", primary.Candidate.PlaceID)
		require.Len(t, alternatives, 2)
		assert.Equal(t, "b", alternatives[0].Candidate.PlaceID)
		assert.Equal(t, "c", alternatives[1].Candidate.PlaceID)
	})
}
