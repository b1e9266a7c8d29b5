package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Appointment is one reserved slot. Values handed out by the scheduling
// service are copies; mutating them has no effect on the live set.
type Appointment struct {
	ID    int64     `json:"id"`
	Date  Date      `json:"date"`
	Time  TimeOfDay `json:"time"`
	Owner string    `json:"owner"`
}
