package types

import "time"

// ChatRequest is the inbound turn payload.
type ChatRequest struct {
	SessionID            string   `json:"session_id"`
	Channel              string   `json:"channel,omitempty"`
	Message              string   `json:"message"`
	Lat                  *float64 `json:"lat,omitempty"`
	Lng                  *float64 `json:"lng,omitempty"`
	Locale               string   `json:"locale,omitempty"`
	AllowSessionLocation bool     `json:"allow_session_location,omitempty"`
	PageToken            *string  `json:"page_token,omitempty"`
}

// ChatResponseMeta carries continuation data the client echoes back.
type ChatResponseMeta struct {
	SessionID     string  `json:"session_id"`
	NextPageToken *string `json:"next_page_token,omitempty"`
	Mode          string  `json:"mode,omitempty"`
}

// ChatResponse is the outbound turn payload. Status is "ok" for every
// recoverable conversational outcome, including no results and "please tell
// me where you are"; "error" is reserved for malformed input.
type ChatResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Places  []PlaceCandidate `json:"places"`
	Meta    ChatResponseMeta `json:"meta"`
}

// Chat response modes surfaced in meta for client hints.
const (
	ChatModeSmalltalk    = "smalltalk"
	ChatModeAskLocation  = "ask_location"
	ChatModeResults      = "results"
	ChatModeNoResults    = "no_results"
	ChatModeGeocodeMiss  = "geocode_miss"
	ChatModeListQuestion = "list_question"
)

// TurnEvent is the audit record written (fire and forget) after each turn.
type TurnEvent struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Channel      string          `json:"channel"`
	Message      string          `json:"message"`
	Intent       IntentType      `json:"intent"`
	Decision     DecisionKind    `json:"decision"`
	Mode         string          `json:"mode"`
	ResultCount  int             `json:"result_count"`
	Attempts     []SearchAttempt `json:"attempts,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at"`
	ErrorMessage string          `json:"error_message,omitempty"`
}
