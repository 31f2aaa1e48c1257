package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config captures everything the server needs from the environment so main
// stays lean. Optional URLs degrade gracefully: no DATABASE_URL means the
// in-memory store, no REDIS_URL means no cross-instance cycle lease.
type Config struct {
	Addr        string `envconfig:"REMINDLY_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	WebhookURL     string        `envconfig:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`

	// Lead times in whole days before the event, one reminder per entry.
	BoundaryDays []int `envconfig:"REMINDER_BOUNDARIES" default:"3,2,1"`

	// Daily at midnight UTC.
	CycleSchedule string `envconfig:"CYCLE_SCHEDULE" default:"0 0 * * *"`

	DispatchWorkers int `envconfig:"DISPATCH_WORKERS" default:"4"`
	DispatchQueue   int `envconfig:"DISPATCH_QUEUE" default:"64"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// FromEnv builds the config from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}
	if cfg.WebhookURL == "" {
		return Config{}, fmt.Errorf("WEBHOOK_URL is required")
	}
	if len(cfg.BoundaryDays) == 0 {
		return Config{}, fmt.Errorf("REMINDER_BOUNDARIES must name at least one lead time")
	}
	for _, d := range cfg.BoundaryDays {
		if d <= 0 {
			return Config{}, fmt.Errorf("reminder boundary must be a positive day count, got %d", d)
		}
	}
	return cfg, nil
}
