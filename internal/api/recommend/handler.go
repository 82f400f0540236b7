package recommend

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/internal/api"
	"github.com/placepal/placepal/internal/types"
)

const maxMessageRunes = 2000

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Chat handles one conversational turn. 200 covers every recoverable
// conversational outcome; 400 is for malformed input only.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendHandler").Start(r.Context(), "Chat", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/chat"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Chat"))
	l.DebugContext(ctx, "Chat handler invoked")

	var req types.ChatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.ErrorContext(ctx, "Failed to decode chat body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(req.Message) > maxMessageRunes {
		api.ErrorResponse(w, r, http.StatusBadRequest, "message is too long")
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		api.ErrorResponse(w, r, http.StatusBadRequest, "lat and lng must be provided together")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.Channel == "" {
		req.Channel = "web"
	}
	span.SetAttributes(semconv.EnduserIDKey.String(req.SessionID))

	resp, err := h.service.Chat(ctx, req)
	if err != nil {
		// The service absorbs recoverable upstream failures itself; an
		// error here means the turn could not produce any reply.
		l.ErrorContext(ctx, "Chat turn failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Something went wrong handling that message")
		return
	}

	l.InfoContext(ctx, "Chat turn completed",
		slog.String("mode", resp.Meta.Mode),
		slog.Int("places", len(resp.Places)),
	)
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
