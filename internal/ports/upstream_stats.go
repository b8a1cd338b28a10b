package ports

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/ratelimiting"
	"github.com/Amund211/canchas/internal/reporting"
)

type upstreamTotals interface {
	Totals(ctx context.Context) (map[string]int64, error)
}

type upstreamStatsResponse struct {
	Success bool             `json:"success"`
	Totals  map[string]int64 `json:"totals"`
}

// MakeGetUpstreamStatsHandler lists protected upstream call counts by "operation:outcome"
func MakeGetUpstreamStatsHandler(
	stats upstreamTotals,
	rateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("upstream_stats"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("upstream_stats"),
		NewRateLimitMiddleware(rateLimiter, onRateLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		totals, err := stats.Totals(ctx)
		if err != nil {
			reporting.Report(ctx, err)
			writeError(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(ctx, w, http.StatusOK, upstreamStatsResponse{Success: true, Totals: totals})
	}

	return middleware(handler)
}
