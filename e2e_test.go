package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/placepal/placepal/internal/api/feedback"
	"github.com/placepal/placepal/internal/api/recommend"
	api "github.com/placepal/placepal/internal/router"
	"github.com/placepal/placepal/internal/types"
)

// E2ETestSuite exercises the full HTTP surface: real router, middleware and
// handlers over scripted service implementations.
type E2ETestSuite struct {
	suite.Suite
	server  *httptest.Server
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// scriptedChatService answers chat turns from the message text alone so the
// suite can drive every conversational mode without a backend.
type scriptedChatService struct{}

func (s *scriptedChatService) Chat(_ context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	msg := strings.ToLower(req.Message)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "generated"
	}
	meta := types.ChatResponseMeta{SessionID: sessionID}

	switch {
	case strings.Contains(msg, "hello"):
		meta.Mode = types.ChatModeSmalltalk
		return &types.ChatResponse{Status: "ok", Message: "Hi! Tell me what you feel like eating.", Meta: meta}, nil
	case strings.Contains(msg, "ramen") && req.Lat == nil:
		meta.Mode = types.ChatModeAskLocation
		return &types.ChatResponse{Status: "ok", Message: "Where should I look for ramen?", Meta: meta}, nil
	case strings.Contains(msg, "ramen"):
		meta.Mode = types.ChatModeResults
		lat, lng := 16.8009, 96.1566
		return &types.ChatResponse{
			Status:  "ok",
			Message: "Ichiban Ramen looks great, about 450m away.",
			Places: []types.PlaceCandidate{
				{PlaceID: "p1", Name: "Ichiban Ramen", Lat: &lat, Lng: &lng, Rating: 4.6, ReviewCount: 312},
			},
			Meta: meta,
		}, nil
	case strings.Contains(msg, "durian"):
		meta.Mode = types.ChatModeNoResults
		return &types.ChatResponse{Status: "ok", Message: "I could not find anything nearby, try widening the area.", Meta: meta}, nil
	}
	return nil, fmt.Errorf("unscripted message: %s", req.Message)
}

// memoryFeedbackRepo keeps submissions in memory for assertion.
type memoryFeedbackRepo struct {
	added []types.FeedbackInput
}

func (m *memoryFeedbackRepo) Add(_ context.Context, input types.FeedbackInput) error {
	m.added = append(m.added, input)
	return nil
}

func (m *memoryFeedbackRepo) Aggregates(_ context.Context, _ []string) (map[string]types.CommunitySignal, error) {
	return map[string]types.CommunitySignal{}, nil
}

func (suite *E2ETestSuite) SetupSuite() {
	suite.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	router := api.SetupRouter(&api.Config{
		RecommendHandler:  recommend.NewHandler(&scriptedChatService{}, suite.logger),
		FeedbackHandler:   feedback.NewHandler(&memoryFeedbackRepo{}, suite.logger),
		RequestsPerMinute: 1000,
	})

	suite.server = httptest.NewServer(router)
	suite.baseURL = suite.server.URL
	suite.client = &http.Client{Timeout: 10 * time.Second}
}

func (suite *E2ETestSuite) TearDownSuite() {
	if suite.server != nil {
		suite.server.Close()
	}
}

func (suite *E2ETestSuite) postJSON(path string, body any) (*http.Response, map[string]any) {
	payload, err := json.Marshal(body)
	require.NoError(suite.T(), err)

	resp, err := suite.client.Post(suite.baseURL+path, "application/json", bytes.NewReader(payload))
	require.NoError(suite.T(), err)

	var decoded map[string]any
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(&decoded))
	resp.Body.Close()
	return resp, decoded
}

func (suite *E2ETestSuite) TestPing() {
	resp, err := suite.client.Get(suite.baseURL + "/ping")
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)
}

func (suite *E2ETestSuite) TestChatConversationFlow() {
	// Greeting.
	resp, body := suite.postJSON("/api/v1/chat", types.ChatRequest{
		SessionID: "e2e-1", Message: "hello there",
	})
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal("ok", body["status"])
	meta := body["meta"].(map[string]any)
	suite.Equal(types.ChatModeSmalltalk, meta["mode"])

	// Food search without location gets a location prompt.
	resp, body = suite.postJSON("/api/v1/chat", types.ChatRequest{
		SessionID: "e2e-1", Message: "I want ramen",
	})
	suite.Equal(http.StatusOK, resp.StatusCode)
	meta = body["meta"].(map[string]any)
	suite.Equal(types.ChatModeAskLocation, meta["mode"])

	// Same search with device coordinates returns places.
	lat, lng := 16.8, 96.15
	resp, body = suite.postJSON("/api/v1/chat", types.ChatRequest{
		SessionID: "e2e-1", Message: "I want ramen", Lat: &lat, Lng: &lng,
	})
	suite.Equal(http.StatusOK, resp.StatusCode)
	meta = body["meta"].(map[string]any)
	suite.Equal(types.ChatModeResults, meta["mode"])
	places := body["places"].([]any)
	require.Len(suite.T(), places, 1)
	first := places[0].(map[string]any)
	suite.Equal("Ichiban Ramen", first["name"])
}

func (suite *E2ETestSuite) TestChatNoResultsIsStillOk() {
	resp, body := suite.postJSON("/api/v1/chat", types.ChatRequest{
		SessionID: "e2e-2", Message: "fresh durian", Lat: f64ptr(16.8), Lng: f64ptr(96.15),
	})
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal("ok", body["status"])
	meta := body["meta"].(map[string]any)
	suite.Equal(types.ChatModeNoResults, meta["mode"])
}

func (suite *E2ETestSuite) TestChatValidation() {
	// Empty message.
	resp, body := suite.postJSON("/api/v1/chat", types.ChatRequest{SessionID: "e2e-3"})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)
	suite.Equal(false, body["success"])

	// Lat without lng.
	resp, _ = suite.postJSON("/api/v1/chat", types.ChatRequest{
		SessionID: "e2e-3", Message: "ramen", Lat: f64ptr(16.8),
	})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)

	// Unknown fields are rejected.
	resp, err := suite.client.Post(suite.baseURL+"/api/v1/chat", "application/json",
		strings.NewReader(`{"message":"hi","bogus":true}`))
	require.NoError(suite.T(), err)
	resp.Body.Close()
	suite.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (suite *E2ETestSuite) TestFeedbackSubmission() {
	resp, body := suite.postJSON("/api/v1/feedback", types.FeedbackInput{
		PlaceID: "p1", PlaceName: "Ichiban Ramen", Rating: 5, SessionID: "e2e-1",
	})
	suite.Equal(http.StatusCreated, resp.StatusCode)
	suite.Equal("ok", body["status"])

	// Out-of-range rating.
	resp, _ = suite.postJSON("/api/v1/feedback", types.FeedbackInput{PlaceID: "p1", Rating: 9})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)

	// Missing place.
	resp, _ = suite.postJSON("/api/v1/feedback", types.FeedbackInput{Rating: 4})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)
}

func f64ptr(v float64) *float64 { return &v }

func TestE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e tests in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}
