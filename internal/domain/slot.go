package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout of slot datetimes as served by the upstream provider, in club-local time
const SlotDatetimeLayout = "2006-01-02T15:04:05"

type Slot struct {
	Price    float64
	Duration int
	Datetime time.Time
	Start    string
	End      string
	Priority int
}

type slotJSON struct {
	Price    float64 `json:"price"`
	Duration int     `json:"duration"`
	Datetime string  `json:"datetime"`
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Priority int     `json:"_priority"`
}

func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{
		Price:    s.Price,
		Duration: s.Duration,
		Datetime: s.Datetime.Format(SlotDatetimeLayout),
		Start:    s.Start,
		End:      s.End,
		Priority: s.Priority,
	})
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal slot: %w", err)
	}

	datetime, err := time.Parse(SlotDatetimeLayout, raw.Datetime)
	if err != nil {
		return fmt.Errorf("failed to parse slot datetime: %w", err)
	}

	*s = Slot{
		Price:    raw.Price,
		Duration: raw.Duration,
		Datetime: datetime,
		Start:    raw.Start,
		End:      raw.End,
		Priority: raw.Priority,
	}
	return nil
}

// DateKey formats the calendar date of t as YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(raw string) (time.Time, error) {
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, raw)
	}
	return date, nil
}
