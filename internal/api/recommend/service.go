package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/app/observability/metrics"
	"github.com/placepal/placepal/internal/api/feedback"
	generativeAI "github.com/placepal/placepal/internal/api/generative_ai"
	"github.com/placepal/placepal/internal/api/intent"
	"github.com/placepal/placepal/internal/api/location"
	"github.com/placepal/placepal/internal/api/ranking"
	"github.com/placepal/placepal/internal/api/search"
	"github.com/placepal/placepal/internal/api/session"
	"github.com/placepal/placepal/internal/types"
)

// Turn budgets. Follow-up and pagination turns get a little more headroom
// because they chain a continuation call behind classification. Every
// sub-call derives its timeout from the remaining budget so slow stages eat
// into later ones instead of summing past the SLA.
const (
	defaultTurnBudget  = 10 * time.Second
	extendedTurnBudget = 15 * time.Second
	narrateTimeoutCap  = 2 * time.Second
)

// Config carries the tunables the turn pipeline needs.
type Config struct {
	DefaultRadiusMeters int
	MaxDistanceMeters   float64
	RegionBias          string // e.g. "Myanmar"; empty disables geocode biasing
}

var _ Service = (*ServiceImpl)(nil)

// Service runs one conversational turn end to end.
type Service interface {
	Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error)
}

type ServiceImpl struct {
	logger       *slog.Logger
	classifier   intent.Classifier
	resolver     location.Resolver
	orchestrator search.Orchestrator
	sessions     session.Repository
	feedbackRepo feedback.Repository
	events       EventRecorder
	ai           generativeAI.Completer
	cfg          Config
}

func NewService(
	classifier intent.Classifier,
	resolver location.Resolver,
	orchestrator search.Orchestrator,
	sessions session.Repository,
	feedbackRepo feedback.Repository,
	events EventRecorder,
	ai generativeAI.Completer,
	cfg Config,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		logger:       logger,
		classifier:   classifier,
		resolver:     resolver,
		orchestrator: orchestrator,
		sessions:     sessions,
		feedbackRepo: feedbackRepo,
		events:       events,
		ai:           ai,
		cfg:          cfg,
	}
}

// Chat handles one turn: classify, decide, resolve a location if needed,
// search, rank, reply. Every upstream failure that has a conversational
// recovery is absorbed into an ok response.
func (s *ServiceImpl) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	started := time.Now()

	budget := defaultTurnBudget
	if req.PageToken != nil || req.AllowSessionLocation {
		budget = extendedTurnBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ctx, span := otel.Tracer("RecommendService").Start(ctx, "Chat", trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Chat"), slog.String("sessionID", req.SessionID))

	sess, err := s.sessions.Load(ctx, req.SessionID, req.Channel)
	if err != nil {
		// Persistence failures degrade to a stateless turn.
		l.WarnContext(ctx, "Session load failed, continuing stateless", slog.Any("error", err))
		sess = nil
	}

	memory := types.IntentMemory{
		HasLastLocation: sess.HasLastCoords(),
	}
	if sess != nil {
		if _, pending := sess.PendingRecommendKeyword(started, session.PendingTTL); pending {
			memory.PendingLocation = true
		}
	}

	intentRes := s.classifier.Classify(ctx, req.Message, memory)
	span.SetAttributes(attribute.String("intent", string(intentRes.Intent)))

	// Explicit cancellation of a pending location prompt.
	if memory.PendingLocation && session.IsCancelPhrase(req.Message) {
		sess.ClearPending()
		s.saveSession(ctx, l, sess)
		resp := s.respond(req, "No problem. Tell me what you are craving whenever you are ready.", nil, types.ChatModeSmalltalk, nil)
		s.recordTurn(req, intentRes.Intent, types.DecisionAskLocation, resp, nil, started)
		return resp, nil
	}

	if intentRes.Intent == types.IntentSmalltalk {
		msg := s.smalltalkReply(ctx, req.Message)
		resp := s.respond(req, msg, nil, types.ChatModeSmalltalk, nil)
		s.recordTurn(req, intentRes.Intent, "", resp, nil, started)
		return resp, nil
	}

	cleaned, loc := location.ExtractExplicitLocation(req.Message)
	// Device coordinates on the request beat an explicit place name.
	if req.Lat != nil && req.Lng != nil {
		loc = types.CoordsLocation(*req.Lat, *req.Lng)
	}
	keyword := s.keywordFor(intentRes, cleaned, sess)

	// "show more" style turns reuse the stored continuation token.
	pageToken := req.PageToken
	if intentRes.Intent == types.IntentListQuestion && pageToken == nil && sess != nil {
		pageToken = sess.NextPageToken
	}

	decision, updated := session.ResolveRecommendDecision(session.DecisionInput{
		SessionID:            req.SessionID,
		Channel:              req.Channel,
		Message:              req.Message,
		Keyword:              keyword,
		Location:             loc,
		AllowSessionLocation: req.AllowSessionLocation || intentRes.Intent == types.IntentRefine || intentRes.Intent == types.IntentListQuestion,
		RadiusHintMeters:     intentRes.RadiusHintMeters,
		Session:              sess,
		Now:                  started,
	})
	span.SetAttributes(attribute.String("decision", string(decision.Kind)))

	var resp *types.ChatResponse
	var attempts []types.SearchAttempt

	switch decision.Kind {
	case types.DecisionAskLocation:
		s.saveSession(ctx, l, updated)
		resp = s.respond(req, askLocationMessage(decision.Keyword), nil, types.ChatModeAskLocation, nil)

	case types.DecisionGeocode:
		resp, attempts = s.geocodeAndSearch(ctx, l, req, decision, updated, pageToken)

	case types.DecisionSearch:
		resp, attempts = s.searchAndReply(ctx, l, req, decision, updated, pageToken)
	}

	s.recordTurn(req, intentRes.Intent, decision.Kind, resp, attempts, started)
	return resp, nil
}

// geocodeAndSearch resolves the location text and, on success, runs the
// search with the geocoded coordinates. A geocode miss keeps the pending
// state so the user can answer the re-prompt.
func (s *ServiceImpl) geocodeAndSearch(ctx context.Context, l *slog.Logger, req types.ChatRequest, decision types.RecommendDecision, sess *types.ConversationSession, pageToken *string) (*types.ChatResponse, []types.SearchAttempt) {
	rctx := location.ResolveContext{
		LocaleRegion:    regionFromLocale(req.Locale),
		HasDeviceCoords: req.Lat != nil && req.Lng != nil,
		RegionBias:      s.cfg.RegionBias,
	}
	resolved, err := s.resolver.Resolve(ctx, decision.LocationText, rctx)
	if err != nil || resolved == nil {
		if err != nil {
			l.WarnContext(ctx, "Geocoding failed", slog.String("location", decision.LocationText), slog.Any("error", err))
		}
		s.saveSession(ctx, l, sess)
		msg := fmt.Sprintf("I couldn't find %q on the map. Could you try a nearby city or landmark?", decision.LocationText)
		return s.respond(req, msg, nil, types.ChatModeGeocodeMiss, nil), nil
	}

	searchDecision := types.SearchDecision(decision.Keyword, resolved.Lat, resolved.Lng,
		s.cfg.DefaultRadiusMeters, types.SearchSourceGeocoded)
	sess.ClearPending()
	sess.LastQuery = decision.Keyword
	return s.searchAndReply(ctx, l, req, searchDecision, sess, pageToken)
}

// searchAndReply runs the ladder, ranks what came back and assembles the
// conversational reply. Total exhaustion is a normal NO_RESULTS outcome.
func (s *ServiceImpl) searchAndReply(ctx context.Context, l *slog.Logger, req types.ChatRequest, decision types.RecommendDecision, sess *types.ConversationSession, pageToken *string) (*types.ChatResponse, []types.SearchAttempt) {
	out, err := s.orchestrator.Search(ctx, search.Input{
		Keyword:      decision.Keyword,
		Lat:          decision.Lat,
		Lng:          decision.Lng,
		RadiusMeters: decision.RadiusMeters,
		PageToken:    pageToken,
	})
	if err != nil {
		l.ErrorContext(ctx, "Search pipeline failed", slog.Any("error", err))
		s.saveSession(ctx, l, sess)
		msg := "I'm having trouble reaching the places service right now. Mind trying again in a moment?"
		return s.respond(req, msg, nil, types.ChatModeNoResults, nil), nil
	}

	// Remember where and what we searched for follow-ups.
	lat, lng := decision.Lat, decision.Lng
	sess.LastLat, sess.LastLng = &lat, &lng
	if decision.RadiusMeters > 0 {
		sess.LastRadiusMeters = decision.RadiusMeters
	}
	sess.LastQuery = decision.Keyword
	sess.NextPageToken = out.NextPageToken
	s.saveSession(ctx, l, sess)

	if len(out.Candidates) == 0 {
		msg := fmt.Sprintf("I couldn't find any %s spots around there, even after widening the search. Want to try a different craving or area?", decision.Keyword)
		return s.respond(req, msg, nil, types.ChatModeNoResults, nil), out.Attempts
	}

	community := s.communitySignals(ctx, l, out.Candidates)
	ranked := ranking.Rank(out.Candidates, ranking.Input{
		MaxDistanceMeters: s.cfg.MaxDistanceMeters,
		Community:         community,
	})

	msg := s.resultsMessage(ctx, decision, ranked)
	places := make([]types.PlaceCandidate, 0, len(ranked))
	for _, r := range ranked {
		places = append(places, r.Candidate)
	}
	resp := s.respond(req, msg, places, types.ChatModeResults, out.NextPageToken)
	return resp, out.Attempts
}

func (s *ServiceImpl) communitySignals(ctx context.Context, l *slog.Logger, cands []types.PlaceCandidate) map[string]types.CommunitySignal {
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.PlaceID)
	}
	signals, err := s.feedbackRepo.Aggregates(ctx, ids)
	if err != nil {
		// Community data is a boost, not a dependency.
		l.WarnContext(ctx, "Feedback aggregates unavailable", slog.Any("error", err))
		return nil
	}
	return signals
}

// resultsMessage builds the reply text: primary pick with its audit-able
// explanation, then alternatives. Narration through the model is attempted
// only within the remaining turn budget and falls back to the deterministic
// string on any failure.
func (s *ServiceImpl) resultsMessage(ctx context.Context, decision types.RecommendDecision, ranked []types.RankedResult) string {
	primary, alternatives := ranking.TopPicks(ranked)
	if primary == nil {
		return "Here is what I found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "How about %s? %s.", primary.Candidate.Name, primary.Explanation)
	if len(alternatives) > 0 {
		names := make([]string, 0, len(alternatives))
		for _, alt := range alternatives {
			names = append(names, alt.Candidate.Name)
		}
		fmt.Fprintf(&b, " Also worth a look: %s.", strings.Join(names, " and "))
	}
	fallback := b.String()

	if s.ai == nil {
		return fallback
	}
	timeout := remainingBudgetFraction(ctx, 3, narrateTimeoutCap)
	if timeout <= 0 {
		return fallback
	}
	prompt := fmt.Sprintf(
		"Rewrite this restaurant recommendation as one short friendly sentence, keeping every fact: %q", fallback)
	narrated, err := s.ai.GenerateCompletion(ctx, prompt, timeout)
	if err != nil || strings.TrimSpace(narrated) == "" {
		return fallback
	}
	return strings.TrimSpace(narrated)
}

func (s *ServiceImpl) smalltalkReply(ctx context.Context, message string) string {
	fallback := "Hi! I help you find good places to eat. Tell me what you are craving, like \"sushi near downtown\"."
	if s.ai == nil {
		return fallback
	}
	timeout := remainingBudgetFraction(ctx, 4, narrateTimeoutCap)
	if timeout <= 0 {
		return fallback
	}
	prompt := fmt.Sprintf(
		"You are a friendly restaurant recommendation assistant. Reply in one short sentence to: %q. Remind the user you can find places to eat.", message)
	reply, err := s.ai.GenerateCompletion(ctx, prompt, timeout)
	if err != nil || strings.TrimSpace(reply) == "" {
		return fallback
	}
	return strings.TrimSpace(reply)
}

// keywordFor picks the search keyword for this turn: the extracted cuisine
// when there is one, the cleaned message for fresh searches, and the
// remembered query for refinements and list questions.
func (s *ServiceImpl) keywordFor(intentRes types.IntentResult, cleaned string, sess *types.ConversationSession) string {
	switch intentRes.Intent {
	case types.IntentRefine, types.IntentListQuestion:
		if sess != nil && sess.LastQuery != "" {
			return sess.LastQuery
		}
	case types.IntentPlaceFollowup:
		if intentRes.PlaceName != nil {
			return *intentRes.PlaceName
		}
	case types.IntentFoodSearch:
		if intentRes.Cuisine != nil {
			return *intentRes.Cuisine
		}
		return cleaned
	case types.IntentNeedsLocation:
		// The message is a location answer; the keyword comes from the
		// pending state inside the decision function.
		return ""
	}
	return cleaned
}

func (s *ServiceImpl) saveSession(ctx context.Context, l *slog.Logger, sess *types.ConversationSession) {
	if sess == nil || sess.ID == "" {
		return
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		l.WarnContext(ctx, "Session save failed, turn proceeds statelessly", slog.Any("error", err))
	}
}

func (s *ServiceImpl) respond(req types.ChatRequest, message string, places []types.PlaceCandidate, mode string, nextPageToken *string) *types.ChatResponse {
	if places == nil {
		places = []types.PlaceCandidate{}
	}
	return &types.ChatResponse{
		Status:  "ok",
		Message: message,
		Places:  places,
		Meta: types.ChatResponseMeta{
			SessionID:     req.SessionID,
			NextPageToken: nextPageToken,
			Mode:          mode,
		},
	}
}

// recordTurn ships the audit event without blocking or failing the turn.
func (s *ServiceImpl) recordTurn(req types.ChatRequest, intentType types.IntentType, decision types.DecisionKind, resp *types.ChatResponse, attempts []types.SearchAttempt, started time.Time) {
	if resp == nil {
		return
	}

	m := metrics.Get()
	attrs := metric.WithAttributes(
		attribute.String("intent", string(intentType)),
		attribute.String("mode", resp.Meta.Mode),
	)
	m.ChatTurnsTotal.Add(context.Background(), 1, attrs)
	m.ChatTurnDuration.Record(context.Background(), time.Since(started).Seconds(), attrs)
	if resp.Meta.Mode == types.ChatModeNoResults {
		m.SearchEmptyTotal.Add(context.Background(), 1)
	}

	if s.events == nil {
		return
	}
	event := types.TurnEvent{
		SessionID:   req.SessionID,
		Channel:     req.Channel,
		Message:     req.Message,
		Intent:      intentType,
		Decision:    decision,
		Mode:        resp.Meta.Mode,
		ResultCount: len(resp.Places),
		Attempts:    attempts,
		DurationMs:  time.Since(started).Milliseconds(),
		CreatedAt:   time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.events.RecordEvent(ctx, event); err != nil {
			s.logger.Warn("Failed to record turn event", slog.Any("error", err))
		}
	}()
}

func askLocationMessage(keyword string) string {
	if keyword == "" {
		return "Sure! Which city or area should I look in?"
	}
	return fmt.Sprintf("Happy to find %s for you. Which city or area should I look in?", keyword)
}

// remainingBudgetFraction derives a sub-call timeout from what is left of
// the turn budget rather than a fixed constant, capped so one stage cannot
// consume the rest of the turn.
func remainingBudgetFraction(ctx context.Context, divisor int, cap time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return cap
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0
	}
	t := remaining / time.Duration(divisor)
	if t > cap {
		return cap
	}
	return t
}

// regionFromLocale pulls the ISO region subtag from a BCP 47 locale.
func regionFromLocale(locale string) string {
	parts := strings.FieldsFunc(locale, func(r rune) bool { return r == '-' || r == '_' })
	if len(parts) >= 2 && len(parts[1]) == 2 {
		return strings.ToUpper(parts[1])
	}
	return ""
}
