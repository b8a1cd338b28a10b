package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/canchas/internal/domain"
)

func TestEventType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event domain.Event
		want  domain.EventType
	}{
		{event: domain.ClubUpdated{ClubID: 1}, want: domain.EventTypeClubUpdated},
		{event: domain.CourtUpdated{ClubID: 1, CourtID: 2}, want: domain.EventTypeCourtUpdated},
		{event: domain.SlotAvailabilityChanged{ClubID: 1, CourtID: 2, Kind: domain.SlotBooked}, want: domain.EventTypeBookingCreated},
		{event: domain.SlotAvailabilityChanged{ClubID: 1, CourtID: 2, Kind: domain.SlotReleased}, want: domain.EventTypeBookingCancelled},
	}

	for _, c := range cases {
		t.Run(string(c.want), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, c.want, c.event.Type())
		})
	}
}

func TestEventTarget(t *testing.T) {
	t.Parallel()

	clubID, courtID := domain.EventTarget(domain.ClubUpdated{ClubID: 7, Fields: []string{"name"}})
	require.Equal(t, 7, clubID)
	require.Equal(t, 0, courtID)

	clubID, courtID = domain.EventTarget(domain.CourtUpdated{ClubID: 7, CourtID: 71})
	require.Equal(t, 7, clubID)
	require.Equal(t, 71, courtID)

	clubID, courtID = domain.EventTarget(domain.SlotAvailabilityChanged{ClubID: 8, CourtID: 82})
	require.Equal(t, 8, clubID)
	require.Equal(t, 82, courtID)
}
