package types

// IntentType classifies what the user wants from a single message.
type IntentType string

const (
	IntentSmalltalk     IntentType = "smalltalk"
	IntentFoodSearch    IntentType = "food_search"
	IntentRefine        IntentType = "refine"
	IntentPlaceFollowup IntentType = "place_followup"
	IntentListQuestion  IntentType = "list_question"
	IntentNeedsLocation IntentType = "needs_location"
)

// IntentResult is the classifier output: one tagged intent plus best-effort
// structured extraction. Extraction fields are nil when the message did not
// mention them.
type IntentResult struct {
	Intent           IntentType `json:"intent"`
	Cuisine          *string    `json:"cuisine,omitempty"`
	BudgetTier       *int       `json:"budget_tier,omitempty"`
	PlaceName        *string    `json:"place_name,omitempty"`
	RadiusHintMeters *int       `json:"radius_hint_meters,omitempty"`
}

// IntentMemory is the minimal session context the classifier may consult.
type IntentMemory struct {
	LastIntent      IntentType
	HasLastLocation bool
	PendingLocation bool
}
