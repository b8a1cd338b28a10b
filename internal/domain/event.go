package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Field name in ClubUpdated.Fields signalling a change to the club's operating hours
const OpeningHoursField = "openhours"

type EventType string

const (
	EventTypeClubUpdated      EventType = "club_updated"
	EventTypeCourtUpdated     EventType = "court_updated"
	EventTypeBookingCreated   EventType = "booking_created"
	EventTypeBookingCancelled EventType = "booking_cancelled"
)

// Event is a change notification from the booking system
type Event interface {
	Type() EventType
}

type ClubUpdated struct {
	ClubID int      `json:"clubId"`
	Fields []string `json:"fields"`
}

func (ClubUpdated) Type() EventType {
	return EventTypeClubUpdated
}

type CourtUpdated struct {
	ClubID  int      `json:"clubId"`
	CourtID int      `json:"courtId"`
	Fields  []string `json:"fields"`
}

func (CourtUpdated) Type() EventType {
	return EventTypeCourtUpdated
}

type SlotChangeKind string

const (
	SlotBooked   SlotChangeKind = "booked"
	SlotReleased SlotChangeKind = "released"
)

type SlotAvailabilityChanged struct {
	ClubID  int            `json:"clubId"`
	CourtID int            `json:"courtId"`
	Slot    Slot           `json:"slot"`
	Kind    SlotChangeKind `json:"kind"`
}

func (e SlotAvailabilityChanged) Type() EventType {
	if e.Kind == SlotReleased {
		return EventTypeBookingCancelled
	}
	return EventTypeBookingCreated
}

// EventTarget returns the club and court an event concerns. courtID is 0 for club events.
func EventTarget(event Event) (clubID int, courtID int) {
	switch e := event.(type) {
	case ClubUpdated:
		return e.ClubID, 0
	case CourtUpdated:
		return e.ClubID, e.CourtID
	case SlotAvailabilityChanged:
		return e.ClubID, e.CourtID
	}
	return 0, 0
}

// JournaledEvent is an event as recorded in the event journal
type JournaledEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	ClubID     int             `json:"clubId"`
	CourtID    int             `json:"courtId,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

var (
	_ Event = ClubUpdated{}
	_ Event = CourtUpdated{}
	_ Event = SlotAvailabilityChanged{}
)
