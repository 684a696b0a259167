package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/scythe504/botornot-backend/internal"
)

type Config struct {
	Port     int
	AppEnv   string
	LogLevel string

	Game       Game
	Synthetic  Synthetic
	Generation Generation
	Database   Database
	Redis      Redis
}

type Game struct {
	CohortSize           int
	MaxRounds            int
	ConversationDuration time.Duration
	VotingDuration       time.Duration
	MaxMessageLength     int
	ArchiveTimeout       time.Duration
	AuditTimeout         time.Duration
}

type Synthetic struct {
	PollInterval time.Duration
	OpenerMin    time.Duration
	OpenerMax    time.Duration
	Concurrency  int
	OpenerChance float64
}

type Generation struct {
	URL     string
	Timeout time.Duration
}

type Database struct {
	Host     string
	Port     string
	Name     string
	Username string
	Password string
	Schema   string
}

// DSN builds a pgx connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Name, d.Schema)
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the optional .env files and the process environment.
func Load(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading env files: %w", err)
		}
	}

	var errs []error
	cfg := Config{
		Port:     intEnv("PORT", 8080, &errs),
		AppEnv:   stringEnv("APP_ENV", "local"),
		LogLevel: stringEnv("LOG_LEVEL", "info"),
		Game: Game{
			CohortSize:           intEnv("COHORT_SIZE", internal.CohortSize, &errs),
			MaxRounds:            intEnv("MAX_ROUNDS", internal.MaxRounds, &errs),
			ConversationDuration: durationEnv("CONVERSATION_DURATION", internal.ConversationPhaseDuration, &errs),
			VotingDuration:       durationEnv("VOTING_DURATION", internal.VotingPhaseDuration, &errs),
			MaxMessageLength:     intEnv("MAX_MESSAGE_LENGTH", internal.MaxMessageLength, &errs),
			ArchiveTimeout:       durationEnv("ARCHIVE_TIMEOUT", 10*time.Second, &errs),
			AuditTimeout:         durationEnv("AUDIT_TIMEOUT", 2*time.Second, &errs),
		},
		Synthetic: Synthetic{
			PollInterval: durationEnv("SYNTHETIC_POLL_INTERVAL", 4*time.Second, &errs),
			OpenerMin:    durationEnv("SYNTHETIC_OPENER_MIN", 3*time.Second, &errs),
			OpenerMax:    durationEnv("SYNTHETIC_OPENER_MAX", 10*time.Second, &errs),
			Concurrency:  intEnv("GENERATION_CONCURRENCY", 8, &errs),
			OpenerChance: 0.5,
		},
		Generation: Generation{
			URL:     stringEnv("GENERATION_URL", "http://localhost:8000/generate"),
			Timeout: durationEnv("GENERATION_TIMEOUT", 20*time.Second, &errs),
		},
		Database: Database{
			Host:     stringEnv("DB_HOST", "localhost"),
			Port:     stringEnv("DB_PORT", "5432"),
			Name:     stringEnv("DB_DATABASE", "botornot"),
			Username: stringEnv("DB_USERNAME", "postgres"),
			Password: stringEnv("DB_PASSWORD", "postgres"),
			Schema:   stringEnv("DB_SCHEMA", "public"),
		},
		Redis: Redis{
			Addr:     stringEnv("REDIS_ADDR", "localhost:6379"),
			Password: stringEnv("REDIS_PASSWORD", ""),
			DB:       intEnv("REDIS_DB", 0, &errs),
		},
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if c.Game.CohortSize < 2 {
		errs = append(errs, fmt.Errorf("COHORT_SIZE must be at least 2, got %d", c.Game.CohortSize))
	}
	if c.Game.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("MAX_ROUNDS must be at least 1, got %d", c.Game.MaxRounds))
	}
	if c.Game.ConversationDuration <= 0 || c.Game.VotingDuration <= 0 {
		errs = append(errs, errors.New("phase durations must be positive"))
	}
	if c.Game.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.Synthetic.PollInterval <= 0 {
		errs = append(errs, errors.New("SYNTHETIC_POLL_INTERVAL must be positive"))
	}
	if c.Synthetic.OpenerMax < c.Synthetic.OpenerMin {
		errs = append(errs, errors.New("SYNTHETIC_OPENER_MAX must not be below SYNTHETIC_OPENER_MIN"))
	}
	if c.Synthetic.Concurrency < 1 {
		errs = append(errs, errors.New("GENERATION_CONCURRENCY must be at least 1"))
	}
	return errs
}

func stringEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
