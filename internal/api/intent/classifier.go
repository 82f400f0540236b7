package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/app/observability/metrics"
	generativeAI "github.com/placepal/placepal/internal/api/generative_ai"
	"github.com/placepal/placepal/internal/types"
)

// llmTimeout caps the structured-extraction fallback. A missed search is
// recoverable by the user repeating themselves; a hung turn is not.
const llmTimeout = 1500 * time.Millisecond

var _ Classifier = (*ClassifierImpl)(nil)

// Classifier maps a raw message plus minimal session memory to one intent
// with best-effort extraction.
type Classifier interface {
	Classify(ctx context.Context, message string, memory types.IntentMemory) types.IntentResult
}

// ClassifierImpl runs ordered heuristic pattern families first and only
// consults the language model when they are inconclusive. Classification
// failures of any kind degrade to smalltalk, never to a search.
type ClassifierImpl struct {
	logger     *slog.Logger
	ai         generativeAI.Completer
	llmEnabled bool
}

func NewClassifier(ai generativeAI.Completer, llmEnabled bool, logger *slog.Logger) *ClassifierImpl {
	return &ClassifierImpl{logger: logger, ai: ai, llmEnabled: llmEnabled && ai != nil}
}

var smalltalkPhrases = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
	"thanks", "thank you", "thx", "bye", "goodbye", "see you",
	"how are you", "what's up", "whats up", "who are you", "what can you do",
	"ok", "okay", "cool", "nice", "great",
}

var refinePhrases = []string{
	"cheaper", "cheapest", "less expensive", "closer", "closest", "nearer",
	"nearest", "open now", "still open", "better rated", "higher rated",
	"more expensive", "fancier", "something else", "other options",
	"different one", "not that one",
}

var listQuestionPhrases = []string{
	"show more", "more results", "more options", "next page", "any more",
	"which one", "which is", "what about the", "first one", "second one",
	"third one", "how far",
}

var followupRe = regexp.MustCompile(`(?i)^(?:tell me (?:more )?about|what about|more (?:info|details) (?:on|about)|details (?:on|for))\s+(.+?)[?.!]*\s*$`)

var foodVerbs = []string{
	"eat", "lunch", "dinner", "breakfast", "brunch", "hungry", "grab a bite",
	"food", "restaurant", "restaurants", "cafe", "coffee", "drink", "bar",
	"takeaway", "take-out", "takeout", "delivery", "snack", "dessert",
}

var cuisineTerms = []string{
	"sushi", "ramen", "pizza", "burger", "burgers", "thai", "italian",
	"indian", "chinese", "japanese", "korean", "mexican", "vietnamese",
	"pho", "tacos", "kebab", "bbq", "barbecue", "seafood", "steak",
	"noodle", "noodles", "curry", "dim sum", "dumplings", "vegan",
	"vegetarian", "bakery", "tea", "shan", "burmese", "biryani", "falafel",
}

var radiusHintRe = regexp.MustCompile(`(?i)within\s+(\d+(?:\.\d+)?)\s*(km|kilometers?|kilometres?|m|meters?|metres?|min(?:ute)?s?\s+walk)`)

// Classify runs the ordered pattern families and, when nothing matches and
// the language model is enabled, one strictly timeboxed extraction call.
func (c *ClassifierImpl) Classify(ctx context.Context, message string, memory types.IntentMemory) types.IntentResult {
	ctx, span := otel.Tracer("IntentClassifier").Start(ctx, "Classify", trace.WithAttributes(
		attribute.Int("message.length", len(message)),
	))
	defer span.End()

	normalized := normalize(message)
	if normalized == "" {
		span.SetAttributes(attribute.String("intent", string(types.IntentSmalltalk)))
		return types.IntentResult{Intent: types.IntentSmalltalk}
	}

	if isSmalltalk(normalized) {
		span.SetAttributes(attribute.String("intent", string(types.IntentSmalltalk)))
		return types.IntentResult{Intent: types.IntentSmalltalk}
	}

	if containsAny(normalized, refinePhrases) {
		res := types.IntentResult{Intent: types.IntentRefine}
		fillExtraction(&res, normalized)
		span.SetAttributes(attribute.String("intent", string(res.Intent)))
		return res
	}

	if m := followupRe.FindStringSubmatch(message); m != nil {
		name := strings.TrimSpace(m[1])
		res := types.IntentResult{Intent: types.IntentPlaceFollowup, PlaceName: &name}
		span.SetAttributes(attribute.String("intent", string(res.Intent)))
		return res
	}

	if containsAny(normalized, listQuestionPhrases) {
		span.SetAttributes(attribute.String("intent", string(types.IntentListQuestion)))
		return types.IntentResult{Intent: types.IntentListQuestion}
	}

	if looksLikeSearch(normalized) {
		res := types.IntentResult{Intent: types.IntentFoodSearch}
		fillExtraction(&res, normalized)
		span.SetAttributes(attribute.String("intent", string(res.Intent)))
		return res
	}

	// While the assistant is waiting for a location, a short non-food reply
	// is most plausibly the location answer.
	if memory.PendingLocation && len(strings.Fields(normalized)) <= 4 {
		span.SetAttributes(attribute.String("intent", string(types.IntentNeedsLocation)))
		return types.IntentResult{Intent: types.IntentNeedsLocation}
	}

	if c.llmEnabled {
		metrics.Get().LLMFallbackTotal.Add(ctx, 1)
		if res, ok := c.classifyWithLLM(ctx, message); ok {
			span.SetAttributes(attribute.String("intent", string(res.Intent)), attribute.Bool("llm_fallback", true))
			return res
		}
	}

	// Heuristics inconclusive and no trustworthy model answer: fail closed.
	span.SetAttributes(attribute.String("intent", string(types.IntentSmalltalk)))
	return types.IntentResult{Intent: types.IntentSmalltalk}
}

const classifyPrompt = `Classify the user's message for a restaurant recommendation assistant.
Respond with only a JSON object:
{"intent": one of "smalltalk","food_search","refine","place_followup","list_question",
 "cuisine": string or null, "budget_tier": 1-4 or null, "place_name": string or null,
 "radius_hint_meters": number or null}
Message: %q`

func (c *ClassifierImpl) classifyWithLLM(ctx context.Context, message string) (types.IntentResult, bool) {
	raw, err := c.ai.GenerateJSON(ctx, fmt.Sprintf(classifyPrompt, message), llmTimeout)
	if err != nil {
		c.logger.WarnContext(ctx, "LLM intent fallback failed, defaulting to smalltalk", slog.Any("error", err))
		return types.IntentResult{}, false
	}

	var parsed struct {
		Intent           string   `json:"intent"`
		Cuisine          *string  `json:"cuisine"`
		BudgetTier       *int     `json:"budget_tier"`
		PlaceName        *string  `json:"place_name"`
		RadiusHintMeters *float64 `json:"radius_hint_meters"`
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(raw)), &parsed); err != nil {
		c.logger.WarnContext(ctx, "LLM intent fallback returned malformed JSON", slog.Any("error", err))
		return types.IntentResult{}, false
	}

	intent := types.IntentType(parsed.Intent)
	switch intent {
	case types.IntentSmalltalk, types.IntentFoodSearch, types.IntentRefine,
		types.IntentPlaceFollowup, types.IntentListQuestion:
	default:
		c.logger.WarnContext(ctx, "LLM intent fallback returned unknown intent", slog.String("intent", parsed.Intent))
		return types.IntentResult{}, false
	}

	res := types.IntentResult{
		Intent:     intent,
		Cuisine:    parsed.Cuisine,
		BudgetTier: parsed.BudgetTier,
		PlaceName:  parsed.PlaceName,
	}
	if parsed.RadiusHintMeters != nil && *parsed.RadiusHintMeters > 0 {
		r := int(*parsed.RadiusHintMeters)
		res.RadiusHintMeters = &r
	}
	return res, true
}

func normalize(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	return strings.Trim(s, "!.? ")
}

func isSmalltalk(normalized string) bool {
	for _, p := range smalltalkPhrases {
		if normalized == p {
			return true
		}
	}
	// Greetings with a trailing clause ("hi there") still count when short.
	for _, p := range []string{"hi ", "hello ", "hey "} {
		if strings.HasPrefix(normalized, p) && len(strings.Fields(normalized)) <= 3 {
			return true
		}
	}
	return false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func looksLikeSearch(normalized string) bool {
	return containsAny(normalized, foodVerbs) || containsWord(normalized, cuisineTerms)
}

func containsWord(s string, words []string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	// Multi-word terms ("dim sum") need a substring check.
	for _, w := range words {
		if strings.Contains(w, " ") && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func fillExtraction(res *types.IntentResult, normalized string) {
	for _, cuisine := range cuisineTerms {
		if containsWord(normalized, []string{cuisine}) || (strings.Contains(cuisine, " ") && strings.Contains(normalized, cuisine)) {
			c := cuisine
			res.Cuisine = &c
			break
		}
	}

	switch {
	case containsAny(normalized, []string{"cheap", "budget", "inexpensive"}):
		tier := 1
		res.BudgetTier = &tier
	case containsAny(normalized, []string{"fancy", "upscale", "expensive", "fine dining"}):
		tier := 3
		res.BudgetTier = &tier
	}

	if m := radiusHintRe.FindStringSubmatch(normalized); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			meters := 0
			unit := m[2]
			switch {
			case strings.HasPrefix(unit, "km") || strings.HasPrefix(unit, "kilo"):
				meters = int(v * 1000)
			case strings.Contains(unit, "walk"):
				meters = int(v * 80) // rough walking pace
			default:
				meters = int(v)
			}
			if meters > 0 {
				res.RadiusHintMeters = &meters
			}
		}
	}
}

// cleanJSONResponse strips markdown code fences models like to wrap JSON in.
func cleanJSONResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
