package ports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/canchas/internal/adapters/eventrepository"
	"github.com/Amund211/canchas/internal/app"
	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/ratelimiting"
	"github.com/Amund211/canchas/internal/reporting"
)

const maxEventBodyBytes = 64 * 1024

const defaultRecentEventsLimit = 20

type acceptedResponse struct {
	Success bool             `json:"success"`
	Type    domain.EventType `json:"type"`
}

type recentEventsResponse struct {
	Success bool                    `json:"success"`
	Events  []domain.JournaledEvent `json:"events"`
}

func MakePostEventHandler(
	handleDomainEvent app.HandleDomainEvent,
	rateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("post_event"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("post_event"),
		NewRateLimitMiddleware(rateLimiter, onRateLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = reporting.SetClientIPInContext(ctx, ratelimiting.ClientIP(r))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(ctx, w, http.StatusRequestEntityTooLarge, "body too large")
				return
			}
			writeError(ctx, w, http.StatusBadRequest, "failed to read body")
			return
		}

		event, err := decodeEvent(body, "")
		if err != nil {
			logging.FromContext(ctx).InfoContext(ctx, "Rejected event", slog.String("error", err.Error()))
			writeError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}

		// Invalidation must not be cut short by the client going away
		handleDomainEvent(context.WithoutCancel(ctx), event)

		writeJSON(ctx, w, http.StatusAccepted, acceptedResponse{Success: true, Type: event.Type()})
	}

	return middleware(handler)
}

func MakeGetRecentEventsHandler(
	repo eventrepository.EventRepository,
	rateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("recent_events"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("recent_events"),
		NewRateLimitMiddleware(rateLimiter, onRateLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit := defaultRecentEventsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > eventrepository.MaxRecentEvents {
				writeError(ctx, w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		events, err := repo.RecentEvents(ctx, limit)
		if err != nil {
			// NOTE: EventRepository implementations handle their own error reporting
			writeError(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(ctx, w, http.StatusOK, recentEventsResponse{Success: true, Events: events})
	}

	return middleware(handler)
}
