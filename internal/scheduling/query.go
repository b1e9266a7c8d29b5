package scheduling

import (
	"fmt"
	"slices"
	"time"

	"appointment-booking-api/internal/model"
)

// Hours is the bookable window used when a slot query leaves it out.
type Hours struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

func DefaultHours() Hours {
	return Hours{Start: model.MustTime("09:00"), End: model.MustTime("17:00")}
}

const DefaultStep = time.Hour

type SlotQuery struct {
	Date  model.Date
	Start model.TimeOfDay
	End   model.TimeOfDay
	Step  time.Duration
}

// ParseSlot reads a "2006-01-02" date and "15:04" time as sent by clients.
func ParseSlot(date, clock string) (model.Date, model.TimeOfDay, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return model.Date{}, model.TimeOfDay{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	t, err := model.ParseTimeOfDay(clock)
	if err != nil {
		return model.Date{}, model.TimeOfDay{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return d, t, nil
}

// ParseSlotQuery fills empty start, end and step from h and DefaultStep.
func ParseSlotQuery(date, start, end, step string, h Hours) (SlotQuery, error) {
	q := SlotQuery{Start: h.Start, End: h.End, Step: DefaultStep}
	var err error
	if q.Date, err = model.ParseDate(date); err != nil {
		return SlotQuery{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if start != "" {
		if q.Start, err = model.ParseTimeOfDay(start); err != nil {
			return SlotQuery{}, fmt.Errorf("%w: start: %v", ErrInvalidInput, err)
		}
	}
	if end != "" {
		if q.End, err = model.ParseTimeOfDay(end); err != nil {
			return SlotQuery{}, fmt.Errorf("%w: end: %v", ErrInvalidInput, err)
		}
	}
	if step != "" {
		if q.Step, err = time.ParseDuration(step); err != nil {
			return SlotQuery{}, fmt.Errorf("%w: step: %v", ErrInvalidInput, err)
		}
	}
	if err := ValidateSlotRange(q.Date, q.Start, q.End, q.Step); err != nil {
		return SlotQuery{}, err
	}
	return q, nil
}

// Slots collects AvailableSlots for q into a slice.
func (s *Service) Slots(q SlotQuery) []model.TimeOfDay {
	out := slices.Collect(s.AvailableSlots(q.Date, q.Start, q.End, q.Step))
	if out == nil {
		out = []model.TimeOfDay{}
	}
	return out
}
