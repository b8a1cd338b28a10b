package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/canchas/internal/domain"
)

func TestSlotJSON(t *testing.T) {
	t.Parallel()

	raw := `{"price":1000,"duration":60,"datetime":"2024-12-18T10:00:00","start":"10:00","end":"11:00","_priority":1}`

	var slot domain.Slot
	require.NoError(t, json.Unmarshal([]byte(raw), &slot))

	require.Equal(t, domain.Slot{
		Price:    1000,
		Duration: 60,
		Datetime: time.Date(2024, time.December, 18, 10, 0, 0, 0, time.UTC),
		Start:    "10:00",
		End:      "11:00",
		Priority: 1,
	}, slot)

	data, err := json.Marshal(slot)
	require.NoError(t, err)
	require.JSONEq(t, raw, string(data))

	err = json.Unmarshal([]byte(`{"datetime":"18/12/2024"}`), &slot)
	require.Error(t, err)
}

func TestDateKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2024-12-18", domain.DateKey(time.Date(2024, time.December, 18, 23, 59, 0, 0, time.UTC)))

	date, err := domain.ParseDate("2024-12-18")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.December, 18, 0, 0, 0, 0, time.UTC), date)

	_, err = domain.ParseDate("2024-13-01")
	require.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestSlotEventType(t *testing.T) {
	t.Parallel()

	require.Equal(t, domain.EventTypeBookingCreated, domain.SlotAvailabilityChanged{Kind: domain.SlotBooked}.Type())
	require.Equal(t, domain.EventTypeBookingCancelled, domain.SlotAvailabilityChanged{Kind: domain.SlotReleased}.Type())
	require.Equal(t, domain.EventTypeClubUpdated, domain.ClubUpdated{}.Type())
	require.Equal(t, domain.EventTypeCourtUpdated, domain.CourtUpdated{}.Type())
}
