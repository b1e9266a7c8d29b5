package bookingv1

import "appointment-booking-api/internal/model"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// RegisterResponse carries the new user and the session registration
// starts.
type RegisterResponse struct {
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expires_at"`
	User      model.User `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expires_at"`
	User      model.User `json:"user"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type CreateAppointmentRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type CreateAppointmentResponse struct {
	Appointment model.Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	// Mine restricts the list to the caller's bookings.
	Mine bool `json:"mine"`
}

type ListAppointmentsResponse struct {
	Appointments []model.Appointment `json:"appointments"`
}

type CancelAppointmentRequest struct {
	ID int64 `json:"id"`
}

type CancelAppointmentResponse struct {
	ID int64 `json:"id"`
}

type AvailableSlotsRequest struct {
	Date  string `json:"date"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Step  string `json:"step,omitempty"`
}

type AvailableSlotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}
