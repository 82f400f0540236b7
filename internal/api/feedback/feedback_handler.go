package feedback

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/internal/api"
	"github.com/placepal/placepal/internal/types"
)

type Handler struct {
	repo   Repository
	logger *slog.Logger
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// SubmitFeedback records a community rating for a place.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FeedbackHandler").Start(r.Context(), "SubmitFeedback", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/feedback"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SubmitFeedback"))

	var req types.FeedbackInput
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.ErrorContext(ctx, "Failed to decode feedback body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.PlaceID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "place_id is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		api.ErrorResponse(w, r, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	if err := h.repo.Add(ctx, req); err != nil {
		l.ErrorContext(ctx, "Failed to store feedback", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to store feedback")
		return
	}

	l.InfoContext(ctx, "Feedback stored", slog.String("place_id", req.PlaceID))
	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]string{"status": "ok"})
}
