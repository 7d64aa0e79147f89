package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "data/test.db"},
		Approval: ApprovalConfig{
			ManagerThreshold:  1_000_000,
			DirectorThreshold: 10_000_000,
		},
		Compliance: ComplianceConfig{
			AlertThresholdDays: []int{30, 14, 7, 1},
			PenaltyMonthlyRate: 0.05,
		},
		Jobs: JobsConfig{
			RetentionWindow: 90 * 24 * time.Hour,
			ScheduleWindow:  5 * time.Minute,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:          "missing database path",
			mutate:        func(c *Config) { c.Database.Path = "" },
			errorContains: "database.path",
		},
		{
			name:          "director threshold below manager threshold",
			mutate:        func(c *Config) { c.Approval.DirectorThreshold = 500_000 },
			errorContains: "director_threshold",
		},
		{
			name:          "zero penalty rate",
			mutate:        func(c *Config) { c.Compliance.PenaltyMonthlyRate = 0 },
			errorContains: "penalty_monthly_rate",
		},
		{
			name:          "negative alert threshold",
			mutate:        func(c *Config) { c.Compliance.AlertThresholdDays = []int{30, -1} },
			errorContains: "alert_threshold_days",
		},
		{
			name:          "zero retention window",
			mutate:        func(c *Config) { c.Jobs.RetentionWindow = 0 },
			errorContains: "retention_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}
