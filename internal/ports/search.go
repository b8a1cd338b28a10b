package ports

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Amund211/canchas/internal/app"
	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/ratelimiting"
	"github.com/Amund211/canchas/internal/reporting"
)

// Upper bound on the time spent aggregating a single search
const SearchTimeout = 10 * time.Second

const maxPlaceIDLength = 256

func MakeSearchHandler(
	getAvailability app.GetAvailability,
	allowedOrigins *DomainSuffixes,
	rateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("search"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("search"),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(rateLimiter, onRateLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		placeID := r.URL.Query().Get("placeId")
		rawDate := r.URL.Query().Get("date")

		ctx = reporting.SetClientIPInContext(ctx, ratelimiting.ClientIP(r))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"placeId": placeID,
			"date":    rawDate,
		})
		ctx = logging.AddMetaToContext(ctx, slog.String("date", rawDate))

		if placeID == "" || len(placeID) > maxPlaceIDLength {
			writeError(ctx, w, http.StatusBadRequest, "invalid placeId")
			return
		}

		date, err := domain.ParseDate(rawDate)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, "invalid date")
			return
		}

		ctx, cancel := context.WithTimeout(ctx, SearchTimeout)
		defer cancel()

		clubs := getAvailability(ctx, placeID, date)

		logging.FromContext(ctx).InfoContext(ctx, "Search completed", slog.Int("clubs", len(clubs)))

		writeJSON(ctx, w, http.StatusOK, clubs)
	}

	return middleware(handler)
}
