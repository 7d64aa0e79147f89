package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysUntilDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"thirty days out", now.Add(30 * 24 * time.Hour), 30},
		{"one day out", now.Add(24 * time.Hour), 1},
		{"due this moment", now, 0},
		{"two days past", now.Add(-48 * time.Hour), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntilDeadline(now, tt.due))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		days int
		want ProximityClass
	}{
		{60, ProximityOnTrack},
		{31, ProximityOnTrack},
		{30, ProximityApproaching},
		{8, ProximityApproaching},
		{7, ProximityImminent},
		{0, ProximityImminent},
		{-1, ProximityOverdue},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.days), "days=%d", tt.days)
	}
}

func TestPenaltyCeilSemantics(t *testing.T) {
	calc := NewCalculator(0.05, 0)

	tests := []struct {
		name        string
		amount      float64
		daysOverdue int
		want        float64
	}{
		{"29 days is one month", 1_000_000, 29, 50_000},
		{"30 days is one month", 1_000_000, 30, 50_000},
		{"31 days is two months", 1_000_000, 31, 100_000},
		{"60 days is two months", 1_000_000, 60, 100_000},
		{"61 days is three months", 1_000_000, 61, 150_000},
		{"overdue by hours still penalized", 1_000_000, 0, 50_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Penalty(tt.amount, tt.daysOverdue), 0.001)
		})
	}
}

func TestPenaltyMonotonicity(t *testing.T) {
	calc := NewCalculator(0.05, 0)

	prev := 0.0
	for days := 0; days <= 365; days++ {
		p := calc.Penalty(1_000_000, days)
		assert.GreaterOrEqual(t, p, prev, "penalty decreased at day %d", days)
		assert.Greater(t, p, 0.0, "penalty not positive at day %d", days)
		prev = p
	}
}

func TestPenaltyCap(t *testing.T) {
	capped := NewCalculator(0.05, 0.5)

	// 600 days overdue: uncapped rate would be 1.0
	assert.InDelta(t, 500_000, capped.Penalty(1_000_000, 600), 0.001)

	uncapped := NewCalculator(0.05, 0)
	assert.InDelta(t, 1_000_000, uncapped.Penalty(1_000_000, 600), 0.001)
}
