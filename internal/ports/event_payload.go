package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Amund211/canchas/internal/domain"
)

var ErrInvalidEvent = errors.New("invalid event")

var (
	eventValidate     *validator.Validate
	eventValidateOnce sync.Once
)

func getEventValidator() *validator.Validate {
	eventValidateOnce.Do(func() {
		eventValidate = validator.New(validator.WithRequiredStructEnabled())

		// Report json names in validation errors
		eventValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return eventValidate
}

type slotPayload struct {
	Price    float64 `json:"price" validate:"gte=0"`
	Duration int     `json:"duration" validate:"gte=0"`
	Datetime string  `json:"datetime" validate:"required,datetime=2006-01-02T15:04:05"`
	Start    string  `json:"start" validate:"max=16"`
	End      string  `json:"end" validate:"max=16"`
	Priority int     `json:"_priority"`
}

type eventPayload struct {
	Type    string       `json:"type" validate:"required,oneof=club_updated court_updated booking_created booking_cancelled"`
	ClubID  int          `json:"clubId" validate:"required,gt=0"`
	CourtID int          `json:"courtId" validate:"required_unless=Type club_updated,gte=0"`
	Fields  []string     `json:"fields" validate:"max=64,dive,required,max=64"`
	Slot    *slotPayload `json:"slot" validate:"required_if=Type booking_created,required_if=Type booking_cancelled"`
}

// decodeEvent parses and validates an event body.
// defaultType is used when the body has no type. An empty defaultType requires the type in the body.
func decodeEvent(data []byte, defaultType domain.EventType) (domain.Event, error) {
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to parse body: %w", ErrInvalidEvent, err)
	}

	if payload.Type == "" {
		payload.Type = string(defaultType)
	} else if defaultType != "" && payload.Type != string(defaultType) {
		return nil, fmt.Errorf("%w: type %s does not match %s", ErrInvalidEvent, payload.Type, defaultType)
	}

	if err := getEventValidator().Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, formatValidationError(err))
	}

	return payload.toDomain()
}

func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
	}
	return strings.Join(messages, "; ")
}

func (p eventPayload) toDomain() (domain.Event, error) {
	switch domain.EventType(p.Type) {
	case domain.EventTypeClubUpdated:
		return domain.ClubUpdated{ClubID: p.ClubID, Fields: p.Fields}, nil
	case domain.EventTypeCourtUpdated:
		return domain.CourtUpdated{ClubID: p.ClubID, CourtID: p.CourtID, Fields: p.Fields}, nil
	case domain.EventTypeBookingCreated, domain.EventTypeBookingCancelled:
		datetime, err := time.Parse(domain.SlotDatetimeLayout, p.Slot.Datetime)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid slot datetime: %w", ErrInvalidEvent, err)
		}

		kind := domain.SlotBooked
		if domain.EventType(p.Type) == domain.EventTypeBookingCancelled {
			kind = domain.SlotReleased
		}

		return domain.SlotAvailabilityChanged{
			ClubID:  p.ClubID,
			CourtID: p.CourtID,
			Slot: domain.Slot{
				Price:    p.Slot.Price,
				Duration: p.Slot.Duration,
				Datetime: datetime,
				Start:    p.Slot.Start,
				End:      p.Slot.End,
				Priority: p.Slot.Priority,
			},
			Kind: kind,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEventType, p.Type)
}
