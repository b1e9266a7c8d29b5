package scheduling

import "appointment-booking-api/internal/model"

// Notifier hears about changes after they are committed. Calls happen
// outside the service lock, on the caller's goroutine, so implementations
// must not block.
type Notifier interface {
	AppointmentCreated(model.Appointment)
	AppointmentCancelled(model.Appointment)
}

type nopNotifier struct{}

func (nopNotifier) AppointmentCreated(model.Appointment)   {}
func (nopNotifier) AppointmentCancelled(model.Appointment) {}

// OwnedBy keeps only the appointments booked by owner.
func OwnedBy(list []model.Appointment, owner string) []model.Appointment {
	out := make([]model.Appointment, 0, len(list))
	for _, a := range list {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out
}
