package eventrepository

import (
	"context"
	"errors"
	"time"

	"github.com/Amund211/canchas/internal/domain"
)

const MaxRecentEvents = 100

var ErrInvalidLimit = errors.New("invalid limit")

type EventRepository interface {
	StoreEvent(ctx context.Context, event domain.Event, receivedAt time.Time) error
	// RecentEvents returns at most limit events, newest first
	RecentEvents(ctx context.Context, limit int) ([]domain.JournaledEvent, error)
}
