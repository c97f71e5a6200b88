package app

import (
	"time"

	"edziennik-backend/internal/changes"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/lib/util/restyutil"
)

type PortalConfig struct {
	BaseUrl           string  `json:"base_url" validate:"omitempty,url"`
	TimeoutMs         int     `json:"timeout_ms" validate:"gte=0"`
	RequestsPerSecond float64 `json:"requests_per_second" validate:"gte=0"`
	UserAgent         string  `json:"user_agent"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	// DumpDir receives a file per portal exchange when set.
	DumpDir string `json:"dump_dir"`
}

type DatabaseConfig struct {
	// Path is a sqlite file, ":memory:" or a libsql:// url.
	Path string `json:"path" validate:"required"`
}

type SessionsConfig struct {
	// Dir of the badger store, sessions only live in memory when empty.
	Dir      string `json:"dir"`
	TtlHours int    `json:"ttl_hours" validate:"gte=0"`
}

const (
	TransportFCM = "fcm"
	TransportLog = "log"
)

type EmailConfig struct {
	Server   string `json:"server"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	Address  string `json:"address" validate:"required_with=Server"`
	Password string `json:"password"`
}

type PushConfig struct {
	Transport       string `json:"transport" validate:"omitempty,oneof=fcm log"`
	CredentialsFile string `json:"credentials_file" validate:"required_if=Transport fcm"`
	Icon            string `json:"icon" validate:"omitempty,url"`
	// Email subscriptions are delivered over smtp when a server is set.
	Email EmailConfig `json:"email"`
}

type HttpConfig struct {
	Addr   string `json:"addr"`
	Secret string `json:"secret" validate:"required"`
}

type CronConfig struct {
	// nil means the default schedule, an empty string disables the job.
	Fast           *string `json:"fast"`
	Deep           *string `json:"deep"`
	TimeoutSeconds int     `json:"timeout_seconds" validate:"gte=0"`
	LeaseSeconds   int     `json:"lease_seconds" validate:"gte=0"`
}

type Config struct {
	Portal    PortalConfig     `json:"portal"`
	Database  DatabaseConfig   `json:"database"`
	Sessions  SessionsConfig   `json:"sessions"`
	Push      PushConfig       `json:"push"`
	Http      HttpConfig       `json:"http"`
	Cron      CronConfig       `json:"cron"`
	Telemetry telemetry.Config `json:"telemetry"`
}

const (
	DefaultFastSchedule = "*/10 * * * *"
	DefaultDeepSchedule = "* * * * *"
	DefaultAddr         = "0.0.0.0:8000"
	DefaultSessionTtl   = 24 * time.Hour
)

func (c CronConfig) FastSchedule() string {
	if c.Fast == nil {
		return DefaultFastSchedule
	}
	return *c.Fast
}

func (c CronConfig) DeepSchedule() string {
	if c.Deep == nil {
		return DefaultDeepSchedule
	}
	return *c.Deep
}

// Timeout bounds a single run of either phase.
func (c CronConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c CronConfig) detectorOptions() changes.Options {
	return changes.Options{Lease: time.Duration(c.LeaseSeconds) * time.Second}
}

func (c HttpConfig) ListenAddr() string {
	if c.Addr == "" {
		return DefaultAddr
	}
	return c.Addr
}

// Options converts the config to portal options, zero values keep the
// portal defaults.
func (c PortalConfig) Options() edziennik.Options {
	return edziennik.Options{
		BaseUrl:           c.BaseUrl,
		Timeout:           time.Duration(c.TimeoutMs) * time.Millisecond,
		UserAgent:         c.UserAgent,
		RequestsPerSecond: c.RequestsPerSecond,
		CloudflareBypass:  c.CloudflareBypass,
	}
}

// PortalOptions is Options with the dump output created.
func (c PortalConfig) PortalOptions() (edziennik.Options, error) {
	opts := c.Options()
	if c.DumpDir == "" {
		return opts, nil
	}
	output, err := restyutil.NewFilesystemOutput(c.DumpDir)
	if err != nil {
		return opts, err
	}
	opts.Dump = output
	return opts, nil
}

func (c SessionsConfig) ttl() time.Duration {
	if c.TtlHours <= 0 {
		return DefaultSessionTtl
	}
	return time.Duration(c.TtlHours) * time.Hour
}
