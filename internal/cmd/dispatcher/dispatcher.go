// Package dispatcher parses dispatch worker flags and launches the runtime.
package dispatcher

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/gclavel/assurvie/internal/platform/cmd"
	workerapp "github.com/gclavel/assurvie/internal/services/dispatchworker/app"
)

// Config holds dispatch worker command configuration.
type Config struct {
	Port          int           `env:"ASSURVIE_DISPATCHER_PORT" envDefault:"8090"`
	DBPath        string        `env:"ASSURVIE_DISPATCHER_DB_PATH" envDefault:"data/clients.db"`
	SMTPAddr      string        `env:"ASSURVIE_DISPATCHER_SMTP_ADDR"`
	SMTPFrom      string        `env:"ASSURVIE_DISPATCHER_SMTP_FROM" envDefault:"no-reply@assurvie.example"`
	DefaultLocale string        `env:"ASSURVIE_DISPATCHER_LOCALE" envDefault:"fr"`
	PollInterval  time.Duration `env:"ASSURVIE_DISPATCHER_POLL_INTERVAL" envDefault:"30s"`
	BatchSize     int           `env:"ASSURVIE_DISPATCHER_BATCH_SIZE" envDefault:"25"`
	StaleAfter    time.Duration `env:"ASSURVIE_DISPATCHER_STALE_AFTER" envDefault:"5m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The dispatch worker health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The clients SQLite database path")
	fs.StringVar(&cfg.SMTPAddr, "smtp-addr", cfg.SMTPAddr, "The SMTP relay address (host:port)")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", cfg.SMTPFrom, "The envelope sender for outbound email")
	fs.StringVar(&cfg.DefaultLocale, "locale", cfg.DefaultLocale, "Default notification locale")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Pending notification sweep interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Maximum records re-attempted per sweep")
	fs.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "Age before a pending record is considered lost")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the dispatch worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDispatcher, func(context.Context) error {
		return workerapp.Run(ctx, workerapp.RuntimeConfig{
			Port:          cfg.Port,
			DBPath:        cfg.DBPath,
			SMTPAddr:      cfg.SMTPAddr,
			SMTPFrom:      cfg.SMTPFrom,
			DefaultLocale: cfg.DefaultLocale,
			PollInterval:  cfg.PollInterval,
			BatchSize:     cfg.BatchSize,
			StaleAfter:    cfg.StaleAfter,
		})
	})
}
