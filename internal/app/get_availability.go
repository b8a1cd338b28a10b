package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
)

// GetAvailability returns every club for the place with the free slots of each of its courts on the date.
//
// Never fails: a club whose courts can't be fetched has no courts, and a court whose slots can't be
// fetched has no available slots.
type GetAvailability func(ctx context.Context, placeID string, date time.Time) []domain.ClubWithAvailability

type courtProvider interface {
	GetClubs(ctx context.Context, placeID string) ([]domain.Club, error)
	GetCourts(ctx context.Context, clubID int) ([]domain.Court, error)
	GetAvailableSlots(ctx context.Context, clubID, courtID int, date time.Time) ([]domain.Slot, error)
}

func BuildGetAvailability(provider courtProvider) GetAvailability {
	tracer := otel.Tracer("canchas/app/get_availability")

	return func(ctx context.Context, placeID string, date time.Time) []domain.ClubWithAvailability {
		ctx, span := tracer.Start(ctx, "GetAvailability", trace.WithAttributes(
			attribute.String("placeID", placeID),
			attribute.String("date", domain.DateKey(date)),
		))
		defer span.End()

		ctx = logging.AddMetaToContext(ctx,
			slog.String("placeID", placeID),
			slog.String("date", domain.DateKey(date)),
		)

		clubs, err := provider.GetClubs(ctx, placeID)
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Failed to get clubs", slog.String("error", err.Error()))
			return []domain.ClubWithAvailability{}
		}

		result := make([]domain.ClubWithAvailability, len(clubs))
		var wg sync.WaitGroup
		for i, club := range clubs {
			wg.Go(func() {
				result[i] = getClubAvailability(ctx, provider, club, date)
			})
		}
		wg.Wait()

		return result
	}
}

func getClubAvailability(ctx context.Context, provider courtProvider, club domain.Club, date time.Time) domain.ClubWithAvailability {
	ctx = logging.AddCourtToContext(ctx, club.ID, 0)

	courts, err := provider.GetCourts(ctx, club.ID)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Failed to get courts", slog.String("error", err.Error()))
		return domain.ClubWithAvailability{Club: club, Courts: []domain.CourtWithAvailability{}}
	}

	withAvailability := make([]domain.CourtWithAvailability, len(courts))
	var wg sync.WaitGroup
	for i, court := range courts {
		wg.Go(func() {
			withAvailability[i] = getCourtAvailability(ctx, provider, club.ID, court, date)
		})
	}
	wg.Wait()

	return domain.ClubWithAvailability{Club: club, Courts: withAvailability}
}

func getCourtAvailability(ctx context.Context, provider courtProvider, clubID int, court domain.Court, date time.Time) domain.CourtWithAvailability {
	slots, err := provider.GetAvailableSlots(ctx, clubID, court.ID, date)
	if err != nil {
		logging.FromContext(ctx).WarnContext(
			ctx, "Failed to get available slots",
			slog.Int("courtID", court.ID),
			slog.String("error", err.Error()),
		)
		return domain.CourtWithAvailability{Court: court, Available: []domain.Slot{}}
	}
	if slots == nil {
		slots = []domain.Slot{}
	}

	return domain.CourtWithAvailability{Court: court, Available: slots}
}
