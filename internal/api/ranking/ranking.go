package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/placepal/placepal/internal/types"
)

// Scoring weights. The explanation string is generated from exactly the
// same facts these weights consume, so a reader can audit any score.
const (
	distanceWeight   = 0.4
	ratingWeight     = 0.35
	reviewWeight     = 0.15
	openNowBoost     = 0.1
	communityCap     = 0.3
	defaultMaxMeters = 5000.0
)

// Input configures one ranking pass.
type Input struct {
	MaxDistanceMeters float64
	Community         map[string]types.CommunitySignal
}

// Rank scores candidates deterministically and returns them best first.
// The sort is stable, so ties keep the backend's original order.
func Rank(candidates []types.PlaceCandidate, input Input) []types.RankedResult {
	maxDist := input.MaxDistanceMeters
	if maxDist <= 0 {
		maxDist = defaultMaxMeters
	}

	results := make([]types.RankedResult, 0, len(candidates))
	for _, cand := range candidates {
		score, explanation := scoreCandidate(cand, maxDist, input.Community[cand.PlaceID])
		results = append(results, types.RankedResult{
			Candidate:   cand,
			Score:       score,
			Explanation: explanation,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// TopPicks splits a ranked list into the primary recommendation and up to
// two alternatives.
func TopPicks(ranked []types.RankedResult) (primary *types.RankedResult, alternatives []types.RankedResult) {
	if len(ranked) == 0 {
		return nil, nil
	}
	primary = &ranked[0]
	rest := ranked[1:]
	if len(rest) > 2 {
		rest = rest[:2]
	}
	return primary, rest
}

func scoreCandidate(cand types.PlaceCandidate, maxDist float64, community types.CommunitySignal) (float64, string) {
	var reasons []string

	distScore := 0.0
	if cand.DistanceMeters != nil {
		distScore = 1 - math.Min(*cand.DistanceMeters/maxDist, 1)
		reasons = append(reasons, fmt.Sprintf("%s away", humanDistance(*cand.DistanceMeters)))
	}

	ratingScore := math.Min(cand.Rating/5, 1)
	if cand.Rating > 0 {
		reasons = append(reasons, fmt.Sprintf("rated %.1f", cand.Rating))
	}

	// Diminishing returns on review volume: one 5-star single-review place
	// cannot outrank an established 4.6 with hundreds of reviews.
	reviewConfidence := math.Min(math.Log10(float64(cand.ReviewCount)+1)/3, 1)
	if cand.ReviewCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d reviews", cand.ReviewCount))
	}

	score := distanceWeight*distScore + ratingWeight*ratingScore + reviewWeight*reviewConfidence

	if cand.OpenNow != nil && *cand.OpenNow {
		score += openNowBoost
		reasons = append(reasons, "open now")
	}

	if boost := communityBoost(community); boost > 0 {
		score += boost
		reasons = append(reasons, fmt.Sprintf("locals rate it %.1f (%d votes)", community.AvgRating, community.Count))
	}

	explanation := "Recommended"
	if len(reasons) > 0 {
		explanation = strings.Join(reasons, ", ")
	}
	return score, explanation
}

// communityBoost folds community feedback in as avg rating scaled by a
// log-confidence factor, capped so it can tip close calls but never
// dominate distance and rating.
func communityBoost(sig types.CommunitySignal) float64 {
	if sig.Count <= 0 || sig.AvgRating <= 0 {
		return 0
	}
	confidence := math.Min(math.Log10(float64(sig.Count)+1)/2, 1)
	return math.Min((sig.AvgRating/5)*confidence*communityCap, communityCap)
}

func humanDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0fm", meters)
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}
