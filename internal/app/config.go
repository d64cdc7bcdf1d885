package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yungbote/tutorloop-backend/internal/data/db"
	"github.com/yungbote/tutorloop-backend/internal/jobs/maintenance"
	"github.com/yungbote/tutorloop-backend/internal/jobs/worker"
	"github.com/yungbote/tutorloop-backend/internal/observability"
	"github.com/yungbote/tutorloop-backend/internal/realtime/bus"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/optimizer"
)

type Config struct {
	Log        LogConfig                `mapstructure:"log"`
	HTTP       HTTPConfig               `mapstructure:"http"`
	Database   db.Config                `mapstructure:"database"`
	Auth       AuthConfig               `mapstructure:"auth"`
	Redis      bus.Config               `mapstructure:"redis"`
	Otel       observability.OtelConfig `mapstructure:"otel"`
	Scheduling SchedulingConfig         `mapstructure:"scheduling"`
	Optimizer  optimizer.Config         `mapstructure:"optimizer"`
	Jobs       JobsConfig               `mapstructure:"jobs"`
}

type LogConfig struct {
	Mode      string `mapstructure:"mode"`
	Redaction bool   `mapstructure:"redaction"`
	HashSalt  string `mapstructure:"hash_salt"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
}

type SchedulingConfig struct {
	DesiredRetention float64         `mapstructure:"desired_retention"`
	LearningSteps    []time.Duration `mapstructure:"learning_steps"`
	RelearningSteps  []time.Duration `mapstructure:"relearning_steps"`
	MaximumInterval  int             `mapstructure:"maximum_interval"`
}

// FSRS returns the base scheduler configuration with default weights.
func (c SchedulingConfig) FSRS() fsrs.Config {
	out := fsrs.DefaultConfig()
	out.DesiredRetention = c.DesiredRetention
	out.LearningSteps = append([]time.Duration(nil), c.LearningSteps...)
	out.RelearningSteps = append([]time.Duration(nil), c.RelearningSteps...)
	out.MaximumInterval = c.MaximumInterval
	return out
}

type JobsConfig struct {
	Worker      worker.Config      `mapstructure:",squash"`
	Maintenance maintenance.Config `mapstructure:",squash"`
	// How often the API process samples queue depth for /metrics.
	CollectInterval time.Duration `mapstructure:"collect_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "development")
	v.SetDefault("log.redaction", true)
	v.SetDefault("log.hash_salt", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{})

	v.SetDefault("database.driver", db.DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "tutorloop")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "tutorloop:events")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.service_name", "tutorloop")
	v.SetDefault("otel.environment", "development")
	v.SetDefault("otel.version", "")

	sched := fsrs.DefaultConfig()
	v.SetDefault("scheduling.desired_retention", sched.DesiredRetention)
	v.SetDefault("scheduling.learning_steps", sched.LearningSteps)
	v.SetDefault("scheduling.relearning_steps", sched.RelearningSteps)
	v.SetDefault("scheduling.maximum_interval", sched.MaximumInterval)

	opt := optimizer.DefaultConfig()
	v.SetDefault("optimizer.epochs", opt.Epochs)
	v.SetDefault("optimizer.mini_batch_size", opt.MiniBatchSize)
	v.SetDefault("optimizer.learning_rate", opt.LearningRate)
	v.SetDefault("optimizer.max_seq_len", opt.MaxSeqLen)
	v.SetDefault("optimizer.min_reviews", opt.MinReviews)

	v.SetDefault("jobs.worker_concurrency", 4)
	v.SetDefault("jobs.batch_size", 1)
	v.SetDefault("jobs.poll_interval", time.Second)
	v.SetDefault("jobs.heartbeat_interval", time.Duration(0))
	v.SetDefault("jobs.sweep_interval", time.Minute)
	v.SetDefault("jobs.stale_after", 5*time.Minute)
	v.SetDefault("jobs.max_attempts", 3)
	v.SetDefault("jobs.optimize_at", "03:00")
	v.SetDefault("jobs.collect_interval", 15*time.Second)
}

// LoadConfig reads .env (if present), then an optional YAML file named by
// CONFIG_FILE or the explicit path, then environment variables. Keys map to
// env names by upper-casing and replacing dots: database.dsn -> DATABASE_DSN.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Jobs.Worker.HeartbeatInterval <= 0 {
		cfg.Jobs.Worker.HeartbeatInterval = cfg.Jobs.Maintenance.StaleAfter / 3
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("database.driver %q: want %s or %s", c.Database.Driver, db.DriverPostgres, db.DriverSQLite)
	}
	if err := c.Scheduling.FSRS().Validate(); err != nil {
		return fmt.Errorf("scheduling: %w", err)
	}
	if hb, stale := c.Jobs.Worker.HeartbeatInterval, c.Jobs.Maintenance.StaleAfter; hb > 0 && stale > 0 && hb >= stale {
		return fmt.Errorf("jobs.heartbeat_interval %s must be shorter than jobs.stale_after %s", hb, stale)
	}
	if c.Optimizer.Epochs < 1 || c.Optimizer.MiniBatchSize < 1 || c.Optimizer.LearningRate <= 0 {
		return fmt.Errorf("optimizer: epochs, mini_batch_size and learning_rate must be positive")
	}
	return nil
}

// RequireAuth reports a missing signing secret; only the API and token
// commands need one.
func (c Config) RequireAuth() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret (AUTH_JWT_SECRET) is required")
	}
	return nil
}
