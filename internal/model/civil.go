package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	ErrBadDate = errors.New("date must be YYYY-MM-DD")
	ErrBadTime = errors.New("time must be HH:MM")
)

// Date is a calendar day with no time or location attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrBadDate
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

// Valid reports whether d names a real day (no Feb 30th).
func (d Date) Valid() bool {
	if d.IsZero() {
		return false
	}
	return DateOf(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)) == d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// TimeOfDay is a wall-clock time within a single day, minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return TimeOfDay{}, ErrBadTime
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustTime is ParseTimeOfDay for constants; it panics on bad input.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// OnTheHour reports whether t starts a whole hour.
func (t TimeOfDay) OnTheHour() bool { return t.Minute == 0 }

// Minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) Compare(o TimeOfDay) int {
	switch a, b := t.Minutes(), o.Minutes(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Add returns t shifted by d. ok is false when the result leaves the day.
func (t TimeOfDay) Add(d time.Duration) (next TimeOfDay, ok bool) {
	m := t.Minutes() + int(d/time.Minute)
	if m < 0 || m >= 24*60 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: m / 60, Minute: m % 60}, true
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
