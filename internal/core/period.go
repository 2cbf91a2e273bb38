package core

import (
	"fmt"
	"time"
)

// Period addresses a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod builds a validated period from a year and a 1-12 month.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: time.Month(month)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the period containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return ErrInvalidMonth
	}
	if p.Year < 1970 || p.Year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

// StartIn is the first instant of the month in loc.
func (p Period) StartIn(loc *time.Location) time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// EndIn is the last instant of the month in loc.
func (p Period) EndIn(loc *time.Location) time.Time {
	return p.StartIn(loc).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Days returns the number of days in the month.
func (p Period) Days() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay limits day to the last day of the month.
func (p Period) ClampDay(day int) int {
	if last := p.Days(); day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

// Date returns the calendar date for day in this month, clamped to the month length.
func (p Period) Date(day int) Date {
	return NewDate(p.Year, int(p.Month), p.ClampDay(day))
}

// Compare returns -1, 0 or 1 when p is before, equal to or after o.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year:
		return -1
	case p.Year > o.Year:
		return 1
	case p.Month < o.Month:
		return -1
	case p.Month > o.Month:
		return 1
	}
	return 0
}

func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }

func (p Period) After(o Period) bool { return p.Compare(o) > 0 }

// Next returns the following month.
func (p Period) Next() Period {
	return PeriodOf(time.Date(p.Year, p.Month+1, 1, 0, 0, 0, 0, time.UTC))
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	return PeriodOf(time.Date(p.Year, p.Month-1, 1, 0, 0, 0, 0, time.UTC))
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
