package types

import "time"

// PendingActionRecommendPlaces is the only pending action the assistant
// currently tracks: it asked for a location and is waiting for one.
const PendingActionRecommendPlaces = "RECOMMEND_PLACES"

// ConversationSession is the per-conversation state row. It is loaded at the
// start of a turn, threaded through the pure decision function, and saved
// back by the caller after the turn's outcome is known.
type ConversationSession struct {
	ID               string     `json:"id"`
	Channel          string     `json:"channel"`
	PendingAction    *string    `json:"pending_action,omitempty"`
	PendingKeyword   *string    `json:"pending_keyword,omitempty"`
	LastQuery        string     `json:"last_query,omitempty"`
	LastLat          *float64   `json:"last_lat,omitempty"`
	LastLng          *float64   `json:"last_lng,omitempty"`
	LastRadiusMeters int        `json:"last_radius_meters,omitempty"`
	NextPageToken    *string    `json:"next_page_token,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
	PendingSince     *time.Time `json:"pending_since,omitempty"`
}

// SetPending records that the assistant is waiting for a location before it
// can recommend places for keyword. Invariant: pending keyword is set iff a
// pending action is set.
func (s *ConversationSession) SetPending(keyword string, now time.Time) {
	action := PendingActionRecommendPlaces
	s.PendingAction = &action
	s.PendingKeyword = &keyword
	s.PendingSince = &now
}

// ClearPending drops any pending action together with its keyword.
func (s *ConversationSession) ClearPending() {
	s.PendingAction = nil
	s.PendingKeyword = nil
	s.PendingSince = nil
}

// PendingRecommendKeyword returns the carried-over keyword when the session
// is mid-way through collecting a location, honouring ttl: a stale pending
// state is treated as absent so the assistant does not interpret an
// unrelated message days later as a location answer.
func (s *ConversationSession) PendingRecommendKeyword(now time.Time, ttl time.Duration) (string, bool) {
	if s == nil || s.PendingAction == nil || s.PendingKeyword == nil {
		return "", false
	}
	if *s.PendingAction != PendingActionRecommendPlaces {
		return "", false
	}
	if s.PendingSince != nil && ttl > 0 && now.Sub(*s.PendingSince) > ttl {
		return "", false
	}
	return *s.PendingKeyword, true
}

// HasLastCoords reports whether the session remembers a usable location.
func (s *ConversationSession) HasLastCoords() bool {
	return s != nil && s.LastLat != nil && s.LastLng != nil
}
