package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// ApprovalConfig holds payment approval chain thresholds. Amounts at or
// above ManagerThreshold require a manager, at or above DirectorThreshold
// a director as well.
type ApprovalConfig struct {
	ManagerThreshold  float64 `mapstructure:"manager_threshold"`
	DirectorThreshold float64 `mapstructure:"director_threshold"`
}

// ComplianceConfig holds deadline monitoring and penalty configuration
type ComplianceConfig struct {
	AlertThresholdDays []int   `mapstructure:"alert_threshold_days"`
	PenaltyMonthlyRate float64 `mapstructure:"penalty_monthly_rate"`
	// MaxPenaltyRate caps the effective penalty rate; 0 means no cap
	MaxPenaltyRate float64 `mapstructure:"max_penalty_rate"`
}

// EscalationConfig holds per-priority response time thresholds for
// conversation escalation
type EscalationConfig struct {
	UrgentAfter time.Duration `mapstructure:"urgent_after"`
	HighAfter   time.Duration `mapstructure:"high_after"`
	MediumAfter time.Duration `mapstructure:"medium_after"`
	LowAfter    time.Duration `mapstructure:"low_after"`
}

// JobsConfig holds background job cadences and the cleanup retention window
type JobsConfig struct {
	TriggerEvaluatorInterval  time.Duration `mapstructure:"trigger_evaluator_interval"`
	ComplianceMonitorInterval time.Duration `mapstructure:"compliance_monitor_interval"`
	EscalationInterval        time.Duration `mapstructure:"escalation_interval"`
	CleanupInterval           time.Duration `mapstructure:"cleanup_interval"`
	RetentionWindow           time.Duration `mapstructure:"retention_window"`
	// ScheduleWindow is how long after its configured time a scheduled
	// trigger is still considered due
	ScheduleWindow time.Duration `mapstructure:"schedule_window"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/taxflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Approval chain defaults. These reproduce firm policy: amounts below
	// one million need an associate only, ten million and above need the
	// full chain.
	viper.SetDefault("approval.manager_threshold", 1_000_000.0)
	viper.SetDefault("approval.director_threshold", 10_000_000.0)

	// Compliance defaults
	viper.SetDefault("compliance.alert_threshold_days", []int{30, 14, 7, 1})
	viper.SetDefault("compliance.penalty_monthly_rate", 0.05)
	viper.SetDefault("compliance.max_penalty_rate", 0.0)

	// Escalation defaults
	viper.SetDefault("escalation.urgent_after", 1*time.Hour)
	viper.SetDefault("escalation.high_after", 4*time.Hour)
	viper.SetDefault("escalation.medium_after", 24*time.Hour)
	viper.SetDefault("escalation.low_after", 72*time.Hour)

	// Job defaults
	viper.SetDefault("jobs.trigger_evaluator_interval", 5*time.Minute)
	viper.SetDefault("jobs.compliance_monitor_interval", 1*time.Hour)
	viper.SetDefault("jobs.escalation_interval", 1*time.Hour)
	viper.SetDefault("jobs.cleanup_interval", 7*24*time.Hour)
	viper.SetDefault("jobs.retention_window", 90*24*time.Hour)
	viper.SetDefault("jobs.schedule_window", 5*time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("database.path", "TAXFLOW_DB_PATH")
	viper.BindEnv("server.port", "TAXFLOW_PORT")
	viper.BindEnv("logger.level", "TAXFLOW_LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Approval.ManagerThreshold <= 0 {
		return fmt.Errorf("approval.manager_threshold must be positive")
	}
	if c.Approval.DirectorThreshold <= c.Approval.ManagerThreshold {
		return fmt.Errorf("approval.director_threshold must exceed approval.manager_threshold")
	}

	if c.Compliance.PenaltyMonthlyRate <= 0 {
		return fmt.Errorf("compliance.penalty_monthly_rate must be positive")
	}
	if c.Compliance.MaxPenaltyRate < 0 {
		return fmt.Errorf("compliance.max_penalty_rate cannot be negative")
	}
	if len(c.Compliance.AlertThresholdDays) == 0 {
		return fmt.Errorf("compliance.alert_threshold_days is required")
	}
	for _, d := range c.Compliance.AlertThresholdDays {
		if d <= 0 {
			return fmt.Errorf("compliance.alert_threshold_days entries must be positive, got %d", d)
		}
	}

	if c.Jobs.RetentionWindow <= 0 {
		return fmt.Errorf("jobs.retention_window must be positive")
	}
	if c.Jobs.ScheduleWindow <= 0 {
		return fmt.Errorf("jobs.schedule_window must be positive")
	}

	return nil
}
