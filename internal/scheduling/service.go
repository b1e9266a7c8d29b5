// Package scheduling owns the live set of appointments and keeps every
// (date, time) slot exclusive.
package scheduling

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"appointment-booking-api/internal/model"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrSlotConflict = errors.New("this time slot is no longer available")
)

type slotKey struct {
	date model.Date
	time model.TimeOfDay
}

// Service holds appointments in process memory. State is lost on restart.
//
// A single RWMutex covers every operation: creates and cancels take the write
// lock for their whole check-then-mutate sequence, queries take the read lock.
type Service struct {
	mu     sync.RWMutex
	live   []model.Appointment // insertion order
	byID   map[int64]int       // id -> index into live
	bySlot map[slotKey]int64
	lastID int64

	notify Notifier
}

type Option func(*Service)

// WithNotifier registers n to hear about committed creates and cancels.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

func New(opts ...Option) *Service {
	s := &Service{
		byID:   make(map[int64]int),
		bySlot: make(map[slotKey]int64),
		notify: nopNotifier{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) IsSlotAvailable(date model.Date, t model.TimeOfDay) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freeLocked(date, t)
}

func (s *Service) freeLocked(date model.Date, t model.TimeOfDay) bool {
	_, taken := s.bySlot[slotKey{date, t}]
	return !taken
}

func (s *Service) CreateAppointment(date model.Date, t model.TimeOfDay, owner string) (model.Appointment, error) {
	if err := validateSlot(date, t); err != nil {
		return model.Appointment{}, err
	}
	if owner == "" {
		return model.Appointment{}, fmt.Errorf("%w: owner required", ErrInvalidInput)
	}

	s.mu.Lock()
	if !s.freeLocked(date, t) {
		s.mu.Unlock()
		return model.Appointment{}, ErrSlotConflict
	}
	s.lastID++
	a := model.Appointment{ID: s.lastID, Date: date, Time: t, Owner: owner}
	if _, dup := s.byID[a.ID]; dup {
		panic(fmt.Sprintf("scheduling: id %d allocated twice", a.ID))
	}
	s.byID[a.ID] = len(s.live)
	s.bySlot[slotKey{date, t}] = a.ID
	s.live = append(s.live, a)
	s.mu.Unlock()

	s.notify.AppointmentCreated(a)
	return a, nil
}

func (s *Service) ListAppointments() []model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Appointment, len(s.live))
	copy(out, s.live)
	return out
}

// CancelAppointment removes id from the live set. It reports false when id
// is unknown or was already cancelled.
func (s *Service) CancelAppointment(id int64) bool {
	s.mu.Lock()
	idx, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	a := s.live[idx]
	s.live = slices.Delete(s.live, idx, idx+1)
	delete(s.byID, id)
	delete(s.bySlot, slotKey{a.Date, a.Time})
	for i := idx; i < len(s.live); i++ {
		s.byID[s.live[i].ID] = i
	}
	s.mu.Unlock()

	s.notify.AppointmentCancelled(a)
	return true
}

// AvailableSlots yields every time from dayStart to dayEnd inclusive, in
// steps of step, that has no live appointment on date. Each iteration reads
// current state; nothing is cached between calls.
//
// Callers should check the range with ValidateSlotRange first; an invalid
// range yields nothing.
func (s *Service) AvailableSlots(date model.Date, dayStart, dayEnd model.TimeOfDay, step time.Duration) iter.Seq[model.TimeOfDay] {
	return func(yield func(model.TimeOfDay) bool) {
		if ValidateSlotRange(date, dayStart, dayEnd, step) != nil {
			return
		}
		for t, ok := dayStart, true; ok && t.Compare(dayEnd) <= 0; t, ok = t.Add(step) {
			if !s.IsSlotAvailable(date, t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

func ValidateSlotRange(date model.Date, dayStart, dayEnd model.TimeOfDay, step time.Duration) error {
	switch {
	case !date.Valid():
		return fmt.Errorf("%w: %v", ErrInvalidInput, model.ErrBadDate)
	case !dayStart.Valid() || !dayEnd.Valid():
		return fmt.Errorf("%w: %v", ErrInvalidInput, model.ErrBadTime)
	case step < time.Minute || step%time.Minute != 0:
		return fmt.Errorf("%w: step must be a whole number of minutes", ErrInvalidInput)
	case dayEnd.Compare(dayStart) < 0:
		return fmt.Errorf("%w: end before start", ErrInvalidInput)
	}
	return nil
}

func validateSlot(date model.Date, t model.TimeOfDay) error {
	if !date.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, model.ErrBadDate)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, model.ErrBadTime)
	}
	if !t.OnTheHour() {
		return fmt.Errorf("%w: appointments start on the hour", ErrInvalidInput)
	}
	return nil
}
