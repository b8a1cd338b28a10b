package ports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/canchas/internal/domain"
)

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	slotJSON := `{"price":1000,"duration":60,"datetime":"2022-12-05T18:30:00","start":"18:30","end":"19:30","_priority":1}`
	slot := domain.Slot{
		Price:    1000,
		Duration: 60,
		Datetime: time.Date(2022, time.December, 5, 18, 30, 0, 0, time.UTC),
		Start:    "18:30",
		End:      "19:30",
		Priority: 1,
	}

	valid := []struct {
		name        string
		body        string
		defaultType domain.EventType
		want        domain.Event
	}{
		{
			name: "club updated",
			body: `{"type":"club_updated","clubId":1,"fields":["openhours","name"]}`,
			want: domain.ClubUpdated{ClubID: 1, Fields: []string{"openhours", "name"}},
		},
		{
			name: "club updated without fields",
			body: `{"type":"club_updated","clubId":1}`,
			want: domain.ClubUpdated{ClubID: 1},
		},
		{
			name: "court updated",
			body: `{"type":"court_updated","clubId":1,"courtId":2}`,
			want: domain.CourtUpdated{ClubID: 1, CourtID: 2},
		},
		{
			name: "booking created",
			body: `{"type":"booking_created","clubId":1,"courtId":2,"slot":` + slotJSON + `}`,
			want: domain.SlotAvailabilityChanged{ClubID: 1, CourtID: 2, Slot: slot, Kind: domain.SlotBooked},
		},
		{
			name: "booking cancelled",
			body: `{"type":"booking_cancelled","clubId":1,"courtId":2,"slot":` + slotJSON + `}`,
			want: domain.SlotAvailabilityChanged{ClubID: 1, CourtID: 2, Slot: slot, Kind: domain.SlotReleased},
		},
		{
			name:        "type from default",
			body:        `{"clubId":1,"courtId":2}`,
			defaultType: domain.EventTypeCourtUpdated,
			want:        domain.CourtUpdated{ClubID: 1, CourtID: 2},
		},
		{
			name:        "matching type and default",
			body:        `{"type":"court_updated","clubId":1,"courtId":2}`,
			defaultType: domain.EventTypeCourtUpdated,
			want:        domain.CourtUpdated{ClubID: 1, CourtID: 2},
		},
		{
			name: "unknown fields are ignored",
			body: `{"type":"court_updated","clubId":1,"courtId":2,"source":"backoffice"}`,
			want: domain.CourtUpdated{ClubID: 1, CourtID: 2},
		},
	}

	for _, c := range valid {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			event, err := decodeEvent([]byte(c.body), c.defaultType)
			require.NoError(t, err)
			require.Equal(t, c.want, event)
		})
	}

	invalid := []struct {
		name        string
		body        string
		defaultType domain.EventType
	}{
		{name: "not json", body: `not json`},
		{name: "missing type", body: `{"clubId":1}`},
		{name: "unknown type", body: `{"type":"club_deleted","clubId":1}`},
		{name: "missing club", body: `{"type":"club_updated"}`},
		{name: "negative club", body: `{"type":"club_updated","clubId":-1}`},
		{name: "court without court id", body: `{"type":"court_updated","clubId":1}`},
		{name: "booking without slot", body: `{"type":"booking_created","clubId":1,"courtId":2}`},
		{name: "cancellation without slot", body: `{"type":"booking_cancelled","clubId":1,"courtId":2}`},
		{name: "slot without datetime", body: `{"type":"booking_created","clubId":1,"courtId":2,"slot":{"price":10}}`},
		{name: "slot with bad datetime", body: `{"type":"booking_created","clubId":1,"courtId":2,"slot":{"datetime":"2022-12-05"}}`},
		{name: "empty field name", body: `{"type":"club_updated","clubId":1,"fields":[""]}`},
		{
			name:        "type does not match default",
			body:        `{"type":"club_updated","clubId":1}`,
			defaultType: domain.EventTypeCourtUpdated,
		},
	}

	for _, c := range invalid {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeEvent([]byte(c.body), c.defaultType)
			require.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}
