package verification

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultAuditTimeout   = 3 * time.Second
	defaultNotifyTimeout  = 10 * time.Second
	defaultNotifyQueue    = 256
	defaultNotifyWorkers  = 4
	defaultSweepInterval  = 5 * time.Minute
	defaultStatsCacheTTL  = 15 * time.Second
	defaultEventsChannel  = "smartduka:events"
	defaultProofFolder    = "payment-proofs"
	defaultReportTimezone = "Africa/Nairobi"
)

// Config holds runtime tunables for the verification module.
type Config struct {
	RequestTimeout time.Duration
	AuditTimeout   time.Duration
	NotifyTimeout  time.Duration
	NotifyQueue    int
	NotifyWorkers  int
	SweepInterval  time.Duration
	StatsCacheTTL  time.Duration
	CallbackSecret string
	EventsChannel  string
	DashboardURL   string
	ProofFolder    string
	Location       *time.Location
}

// LoadConfig reads verification configuration from environment variables and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		RequestTimeout: defaultRequestTimeout,
		AuditTimeout:   defaultAuditTimeout,
		NotifyTimeout:  defaultNotifyTimeout,
		NotifyQueue:    defaultNotifyQueue,
		NotifyWorkers:  defaultNotifyWorkers,
		SweepInterval:  defaultSweepInterval,
		StatsCacheTTL:  defaultStatsCacheTTL,
		EventsChannel:  defaultEventsChannel,
		ProofFolder:    defaultProofFolder,
	}

	seconds := []struct {
		env string
		dst *time.Duration
	}{
		{"VERIFY_REQUEST_TIMEOUT_SECONDS", &cfg.RequestTimeout},
		{"VERIFY_AUDIT_TIMEOUT_SECONDS", &cfg.AuditTimeout},
		{"NOTIFY_TIMEOUT_SECONDS", &cfg.NotifyTimeout},
		{"ACTIVATION_SWEEP_SECONDS", &cfg.SweepInterval},
		{"STATS_CACHE_TTL_SECONDS", &cfg.StatsCacheTTL},
	}
	for _, s := range seconds {
		v, err := readIntEnv(s.env)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", s.env, err)
		}
		if v == nil {
			continue
		}
		if *v <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", s.env)
		}
		*s.dst = time.Duration(*v) * time.Second
	}

	if v, err := readIntEnv("NOTIFY_QUEUE_SIZE"); err != nil {
		return Config{}, fmt.Errorf("parse NOTIFY_QUEUE_SIZE: %w", err)
	} else if v != nil {
		cfg.NotifyQueue = *v
	}
	if v, err := readIntEnv("NOTIFY_WORKERS"); err != nil {
		return Config{}, fmt.Errorf("parse NOTIFY_WORKERS: %w", err)
	} else if v != nil {
		cfg.NotifyWorkers = *v
	}
	if cfg.NotifyQueue <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	if cfg.NotifyWorkers <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_WORKERS must be positive")
	}

	cfg.CallbackSecret = strings.TrimSpace(os.Getenv("PAYMENT_CALLBACK_SECRET"))
	cfg.DashboardURL = strings.TrimSpace(os.Getenv("ADMIN_DASHBOARD_URL"))
	if v := strings.TrimSpace(os.Getenv("EVENTS_CHANNEL")); v != "" {
		cfg.EventsChannel = v
	}
	if v := strings.TrimSpace(os.Getenv("PROOF_FOLDER")); v != "" {
		cfg.ProofFolder = v
	}

	tz := defaultReportTimezone
	if v := strings.TrimSpace(os.Getenv("REPORT_TIMEZONE")); v != "" {
		tz = v
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.FixedZone(tz, 3*60*60)
	}
	cfg.Location = loc

	return cfg, nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
