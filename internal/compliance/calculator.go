package compliance

import "time"

// ProximityClass classifies how close a filing is to its deadline
type ProximityClass string

const (
	ProximityOnTrack     ProximityClass = "ON_TRACK"
	ProximityApproaching ProximityClass = "APPROACHING" // within 30 days
	ProximityImminent    ProximityClass = "IMMINENT"    // within 7 days
	ProximityOverdue     ProximityClass = "OVERDUE"
)

// DaysUntilDeadline returns the whole days between now and the due date.
// Negative values mean the deadline has passed.
func DaysUntilDeadline(now, dueDate time.Time) int {
	return int(dueDate.Sub(now).Hours() / 24)
}

// Classify maps a day count to its proximity class
func Classify(daysUntil int) ProximityClass {
	switch {
	case daysUntil < 0:
		return ProximityOverdue
	case daysUntil <= 7:
		return ProximityImminent
	case daysUntil <= 30:
		return ProximityApproaching
	default:
		return ProximityOnTrack
	}
}

// Calculator computes overdue penalties. The penalty is a step function of
// elapsed overdue time: each started 30-day month adds monthlyRate of the
// filing amount. maxRate, when positive, caps the effective rate.
type Calculator struct {
	monthlyRate float64
	maxRate     float64
}

// NewCalculator creates a penalty calculator
func NewCalculator(monthlyRate, maxRate float64) *Calculator {
	return &Calculator{
		monthlyRate: monthlyRate,
		maxRate:     maxRate,
	}
}

// MonthsOverdue returns ceil(daysOverdue / 30), with a minimum of one
// month once the deadline has passed at all
func (c *Calculator) MonthsOverdue(daysOverdue int) int {
	if daysOverdue < 0 {
		return 0
	}
	months := (daysOverdue + 29) / 30
	if months == 0 {
		months = 1
	}
	return months
}

// Penalty returns the penalty for a filing amount at the given overdue age
func (c *Calculator) Penalty(amount float64, daysOverdue int) float64 {
	rate := c.monthlyRate * float64(c.MonthsOverdue(daysOverdue))
	if c.maxRate > 0 && rate > c.maxRate {
		rate = c.maxRate
	}
	return amount * rate
}
