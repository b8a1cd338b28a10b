package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/canchas/internal/adapters/cache"
	"github.com/Amund211/canchas/internal/adapters/courtprovider"
	"github.com/Amund211/canchas/internal/adapters/statsstore"
	"github.com/Amund211/canchas/internal/app"
	"github.com/Amund211/canchas/internal/circuitbreaker"
	"github.com/Amund211/canchas/internal/clocktest"
	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/domaintest"
	"github.com/Amund211/canchas/internal/ratelimiting"
)

var errUpstream = errors.New("upstream failed")

type mapProvider struct {
	mu sync.Mutex

	clubs map[string][]domain.Club
	// Keyed by club id
	courts map[int][]domain.Court
	// Keyed by "club_court_date"
	slots map[string][]domain.Slot

	failingCourts map[int]bool
	failingSlots  map[string]bool
	failClubs     bool

	calls int
}

func slotsMapKey(clubID, courtID int, date time.Time) string {
	return fmt.Sprintf("%d_%d_%s", clubID, courtID, domain.DateKey(date))
}

func (p *mapProvider) GetClubs(ctx context.Context, placeID string) ([]domain.Club, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.failClubs {
		return nil, errUpstream
	}
	return p.clubs[placeID], nil
}

func (p *mapProvider) GetCourts(ctx context.Context, clubID int) ([]domain.Court, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.failingCourts[clubID] {
		return nil, errUpstream
	}
	return p.courts[clubID], nil
}

func (p *mapProvider) GetAvailableSlots(ctx context.Context, clubID, courtID int, date time.Time) ([]domain.Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	key := slotsMapKey(clubID, courtID, date)
	if p.failingSlots[key] {
		return nil, errUpstream
	}
	return p.slots[key], nil
}

func withID(id int) domain.Club {
	return domain.Club{ID: id, Attributes: map[string]any{}}
}

func courtWithID(id int) domain.Court {
	return domain.Court{ID: id, Attributes: map[string]any{}}
}

func TestGetAvailability(t *testing.T) {
	t.Parallel()

	date := domaintest.Date(2022, time.December, 5)

	t.Run("single club with empty court", func(t *testing.T) {
		t.Parallel()

		provider := &mapProvider{
			clubs:  map[string][]domain.Club{"123": {withID(1)}},
			courts: map[int][]domain.Court{1: {courtWithID(1)}},
			slots:  map[string][]domain.Slot{"1_1_2022-12-05": {}},
		}

		result := app.BuildGetAvailability(provider)(t.Context(), "123", date)

		data, err := json.Marshal(result)
		require.NoError(t, err)
		require.JSONEq(t, `[{"id":1,"courts":[{"id":1,"available":[]}]}]`, string(data))
	})

	t.Run("no clubs", func(t *testing.T) {
		t.Parallel()

		provider := &mapProvider{
			clubs: map[string][]domain.Club{"123": {}},
		}

		result := app.BuildGetAvailability(provider)(t.Context(), "123", date)
		require.NotNil(t, result)
		require.Empty(t, result)

		data, err := json.Marshal(result)
		require.NoError(t, err)
		require.JSONEq(t, `[]`, string(data))
	})

	t.Run("club fetch failure", func(t *testing.T) {
		t.Parallel()

		provider := &mapProvider{failClubs: true}

		result := app.BuildGetAvailability(provider)(t.Context(), "123", date)
		require.NotNil(t, result)
		require.Empty(t, result)
	})

	t.Run("partial failure", func(t *testing.T) {
		t.Parallel()

		slot := domaintest.NewSlot(time.Date(2022, time.December, 5, 10, 0, 0, 0, time.UTC))
		provider := &mapProvider{
			clubs: map[string][]domain.Club{"123": {withID(1), withID(2)}},
			courts: map[int][]domain.Court{
				2: {courtWithID(3), courtWithID(4)},
			},
			slots: map[string][]domain.Slot{
				"2_3_2022-12-05": {slot},
			},
			failingCourts: map[int]bool{1: true},
			failingSlots:  map[string]bool{"2_4_2022-12-05": true},
		}

		result := app.BuildGetAvailability(provider)(t.Context(), "123", date)

		require.Equal(t, []domain.ClubWithAvailability{
			{Club: withID(1), Courts: []domain.CourtWithAvailability{}},
			{Club: withID(2), Courts: []domain.CourtWithAvailability{
				{Court: courtWithID(3), Available: []domain.Slot{slot}},
				{Court: courtWithID(4), Available: []domain.Slot{}},
			}},
		}, result)
	})

	t.Run("upstream order is kept", func(t *testing.T) {
		t.Parallel()

		clubs := make([]domain.Club, 0, 20)
		courts := make(map[int][]domain.Court)
		for i := 20; i > 0; i-- {
			clubs = append(clubs, withID(i))
			courts[i] = []domain.Court{courtWithID(i*10 + 2), courtWithID(i*10 + 1)}
		}
		provider := &mapProvider{
			clubs:  map[string][]domain.Club{"123": clubs},
			courts: courts,
		}

		result := app.BuildGetAvailability(provider)(t.Context(), "123", date)
		require.Len(t, result, 20)
		for i, club := range result {
			require.Equal(t, 20-i, club.ID)
			require.Len(t, club.Courts, 2)
			require.Equal(t, club.ID*10+2, club.Courts[0].ID)
			require.Equal(t, club.ID*10+1, club.Courts[1].ID)
			require.NotNil(t, club.Courts[0].Available)
		}
	})

	t.Run("through protected provider", func(t *testing.T) {
		t.Parallel()

		clock := clocktest.New(t, time.Date(2022, time.December, 1, 12, 0, 0, 0, time.UTC))
		availabilityCache := cache.NewAvailabilityCache(cache.DefaultTTL, clock.Now)
		defer availabilityCache.Stop()

		provider := &mapProvider{
			clubs:  map[string][]domain.Club{"123": {withID(1)}},
			courts: map[int][]domain.Court{1: {courtWithID(1)}},
			slots:  map[string][]domain.Slot{"1_1_2022-12-05": {}},
		}
		protected := courtprovider.NewProtected(
			provider,
			availabilityCache,
			ratelimiting.NewTokenBucket(ratelimiting.DefaultUpstreamRequestsPerMinute, clock.Now, clock.After),
			circuitbreaker.New(circuitbreaker.Config{Name: "test", NowFunc: clock.Now}),
			statsstore.Noop{},
		)
		t.Cleanup(protected.Close)
		getAvailability := app.BuildGetAvailability(protected)

		result := getAvailability(t.Context(), "123", date)
		data, err := json.Marshal(result)
		require.NoError(t, err)
		require.JSONEq(t, `[{"id":1,"courts":[{"id":1,"available":[]}]}]`, string(data))
		require.Equal(t, 3, provider.calls)

		// Clubs and courts are cached, the empty slot list is not
		getAvailability(t.Context(), "123", date)
		require.Equal(t, 4, provider.calls)
	})
}
