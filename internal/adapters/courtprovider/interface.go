package courtprovider

import (
	"context"
	"time"

	"github.com/Amund211/canchas/internal/domain"
)

type CourtProvider interface {
	GetClubs(ctx context.Context, placeID string) ([]domain.Club, error)
	GetCourts(ctx context.Context, clubID int) ([]domain.Court, error)
	GetAvailableSlots(ctx context.Context, clubID, courtID int, date time.Time) ([]domain.Slot, error)
}
