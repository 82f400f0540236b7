package session

import (
	"strings"
	"time"

	"github.com/placepal/placepal/internal/types"
)

// PendingTTL bounds how long a "waiting for a location" state stays live.
// After this, an unrelated message is no longer interpreted as a location
// answer; the user is re-prompted instead.
const PendingTTL = 15 * time.Minute

// DecisionInput is everything the state machine may consult for one turn:
// the decoded request fields plus the loaded session row. The decision is a
// pure function of this value; persistence happens separately in the caller.
type DecisionInput struct {
	SessionID            string
	Channel              string
	Message              string
	Keyword              string            // extracted from this message; empty if none
	Location             types.GeoLocation // location evidence carried by this turn
	AllowSessionLocation bool
	RadiusHintMeters     *int
	Session              *types.ConversationSession
	Now                  time.Time
}

var cancelPhrases = []string{
	"cancel", "never mind", "nevermind", "forget it", "stop", "no thanks",
}

// IsCancelPhrase reports whether the message explicitly abandons the
// pending location prompt.
func IsCancelPhrase(message string) bool {
	normalized := strings.Trim(strings.ToLower(strings.TrimSpace(message)), "!.? ")
	for _, p := range cancelPhrases {
		if normalized == p {
			return true
		}
	}
	return false
}

// ResolveRecommendDecision computes the per-turn decision and the updated
// session row. Transitions:
//
//	keyword + coordinates on the turn    -> Search (source request)
//	keyword + explicit location text     -> Geocode, pending set as fallback
//	keyword + remembered session coords  -> Search (source session), if allowed
//	keyword, nothing else                -> AskLocation, pending set
//
// A message with no keyword of its own consumes the pending keyword, in
// which case the message text itself is treated as the location answer.
func ResolveRecommendDecision(input DecisionInput) (types.RecommendDecision, *types.ConversationSession) {
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	sess := input.Session
	if sess == nil {
		sess = &types.ConversationSession{ID: input.SessionID, Channel: input.Channel}
	}

	keyword := strings.TrimSpace(input.Keyword)
	loc := input.Location
	carriedOver := false
	if keyword == "" {
		if pending, ok := sess.PendingRecommendKeyword(now, PendingTTL); ok {
			keyword = pending
			carriedOver = true
		}
	}

	// The pending prompt was "where are you?"; a keyword-less reply is the
	// location answer unless it already parsed as an explicit clause.
	if carriedOver && loc.Kind() == types.GeoLocationNone {
		answer := strings.TrimSpace(input.Message)
		if answer != "" && !IsCancelPhrase(answer) {
			loc = types.TextLocation(answer)
		}
	}

	sess.UpdatedAt = now

	lat, lng, hasCoords := loc.Coords()
	locationText, hasText := loc.Text()

	switch {
	case keyword != "" && hasCoords:
		sess.ClearPending()
		sess.LastQuery = keyword
		return types.SearchDecision(keyword, lat, lng,
			radiusFor(input, sess), types.SearchSourceRequest), sess

	case keyword != "" && hasText:
		// Keep pending in case geocoding fails and the user must be
		// re-prompted.
		sess.SetPending(keyword, now)
		return types.GeocodeDecision(keyword, locationText), sess

	case keyword != "" && input.AllowSessionLocation && sess.HasLastCoords():
		sess.ClearPending()
		sess.LastQuery = keyword
		return types.SearchDecision(keyword, *sess.LastLat, *sess.LastLng,
			radiusFor(input, sess), types.SearchSourceSession), sess

	default:
		sess.SetPending(keyword, now)
		return types.AskLocationDecision(keyword), sess
	}
}

func radiusFor(input DecisionInput, sess *types.ConversationSession) int {
	if input.RadiusHintMeters != nil && *input.RadiusHintMeters > 0 {
		return *input.RadiusHintMeters
	}
	if sess.LastRadiusMeters > 0 {
		return sess.LastRadiusMeters
	}
	return 0 // orchestrator applies its default
}
