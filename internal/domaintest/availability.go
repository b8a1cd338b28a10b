package domaintest

import (
	"fmt"
	"time"

	"github.com/Amund211/canchas/internal/domain"
)

func NewClub(id int) domain.Club {
	return domain.Club{
		ID: id,
		Attributes: map[string]any{
			"name": fmt.Sprintf("Club %d", id),
		},
	}
}

func NewCourt(id int) domain.Court {
	return domain.Court{
		ID: id,
		Attributes: map[string]any{
			"name": fmt.Sprintf("Court %d", id),
		},
	}
}

// NewSlot builds a one hour slot starting at the given datetime
func NewSlot(datetime time.Time) domain.Slot {
	return domain.Slot{
		Price:    1000,
		Duration: 60,
		Datetime: datetime,
		Start:    datetime.Format("15:04"),
		End:      datetime.Add(time.Hour).Format("15:04"),
		Priority: 0,
	}
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
