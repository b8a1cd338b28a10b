package eventrepository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Amund211/canchas/internal/domain"
	"github.com/google/uuid"
)

const defaultMemoryCapacity = 1000

// Memory keeps the most recent events in memory. Used when no database is configured.
type Memory struct {
	mu       sync.Mutex
	events   []domain.JournaledEvent
	capacity int
	idFunc   func() uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		events:   make([]domain.JournaledEvent, 0),
		capacity: defaultMemoryCapacity,
		idFunc:   uuid.New,
	}
}

func (m *Memory) StoreEvent(ctx context.Context, event domain.Event, receivedAt time.Time) error {
	row, err := toDBEvent(m.idFunc(), event, receivedAt)
	if err != nil {
		return err
	}
	journaled, err := fromDBEvent(row)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, journaled)
	if len(m.events) > m.capacity {
		m.events = slices.Delete(m.events, 0, len(m.events)-m.capacity)
	}

	return nil
}

func (m *Memory) RecentEvents(ctx context.Context, limit int) ([]domain.JournaledEvent, error) {
	if limit <= 0 || limit > MaxRecentEvents {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := slices.Clone(m.events)
	slices.Reverse(result)
	slices.SortStableFunc(result, func(a, b domain.JournaledEvent) int {
		return b.ReceivedAt.Compare(a.ReceivedAt)
	})

	return result[:min(limit, len(result))], nil
}
