package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/reporting"
)

// HandleDomainEvent drops the cached data affected by an event.
//
// Failures are logged and reported. They are never returned.
type HandleDomainEvent func(ctx context.Context, event domain.Event)

type availabilityInvalidator interface {
	InvalidateClub(ctx context.Context, clubID int) error
	InvalidateClubInfo(ctx context.Context, clubID int) error
	InvalidateCourt(ctx context.Context, clubID, courtID int) error
	InvalidateSlots(ctx context.Context, clubID, courtID int, date time.Time) error
}

type eventJournal interface {
	StoreEvent(ctx context.Context, event domain.Event, receivedAt time.Time) error
}

func BuildHandleDomainEvent(
	invalidator availabilityInvalidator,
	journal eventJournal,
	nowFunc func() time.Time,
) HandleDomainEvent {
	return func(ctx context.Context, event domain.Event) {
		clubID, courtID := domain.EventTarget(event)
		ctx = logging.AddMetaToContext(ctx, slog.String("eventType", string(event.Type())))
		ctx = logging.AddCourtToContext(ctx, clubID, courtID)
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"eventType": string(event.Type()),
			"clubID":    strconv.Itoa(clubID),
			"courtID":   strconv.Itoa(courtID),
		})

		if err := journal.StoreEvent(ctx, event, nowFunc()); err != nil {
			// NOTE: eventJournal implementations handle their own error reporting
			logging.FromContext(ctx).WarnContext(ctx, "Failed to journal event", slog.String("error", err.Error()))
		}

		if err := invalidate(ctx, invalidator, event); err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to invalidate cache: %w", err))
		}
	}
}

func invalidate(ctx context.Context, invalidator availabilityInvalidator, event domain.Event) error {
	switch e := event.(type) {
	case domain.ClubUpdated:
		if slices.Contains(e.Fields, domain.OpeningHoursField) {
			return invalidator.InvalidateClub(ctx, e.ClubID)
		}
		return invalidator.InvalidateClubInfo(ctx, e.ClubID)
	case domain.CourtUpdated:
		return invalidator.InvalidateCourt(ctx, e.ClubID, e.CourtID)
	case domain.SlotAvailabilityChanged:
		return invalidator.InvalidateSlots(ctx, e.ClubID, e.CourtID, e.Slot.Datetime)
	}
	return fmt.Errorf("%w: %T", domain.ErrUnknownEventType, event)
}
