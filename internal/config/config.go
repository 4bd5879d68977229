package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/src-lua/apogee/internal/engine"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config is the apogee configuration file.
type Config struct {
	DBPath   string        `yaml:"db_path"`
	User     string        `yaml:"user" validate:"required,max=64"`
	Timezone string        `yaml:"timezone" validate:"omitempty,timezone"`
	LogLevel string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	Ledger   LedgerConfig  `yaml:"ledger"`
	Streaks  StreakConfig  `yaml:"streaks"`
	Rewards  RewardsConfig `yaml:"rewards"`
	Sweep    SweepConfig   `yaml:"sweep"`
}

// LedgerConfig holds the XP bucket rules.
type LedgerConfig struct {
	GraceHours   int     `yaml:"grace_hours" validate:"gte=1,lte=12"`
	DailyCap     int     `yaml:"daily_cap" validate:"gt=0"`
	OverflowRate float64 `yaml:"overflow_rate" validate:"gte=0,lte=1"`
	HardCap      int     `yaml:"hard_cap" validate:"gtefield=DailyCap"`
	Rounding     string  `yaml:"rounding" validate:"oneof=nearest floor"`
}

// StreakConfig holds the streak cache rules.
type StreakConfig struct {
	CacheSoftLimit  int           `yaml:"cache_soft_limit" validate:"gt=0"`
	CacheMaxAge     time.Duration `yaml:"cache_max_age" validate:"gte=1m"`
	GlobalFreshness time.Duration `yaml:"global_freshness" validate:"gte=1s"`
}

type RewardsConfig struct {
	DiamondsPerLevel int `yaml:"diamonds_per_level" validate:"gt=0"`
}

// SweepConfig drives the background rollover job.
type SweepConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gte=1s"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	xp := engine.DefaultXPRules()
	streaks := engine.DefaultStreakRules()
	return Config{
		User:     "local",
		LogLevel: "info",
		Ledger: LedgerConfig{
			GraceHours:   2,
			DailyCap:     xp.DailyCap,
			OverflowRate: xp.OverflowRate,
			HardCap:      xp.HardCap,
			Rounding:     string(xp.Rounding),
		},
		Streaks: StreakConfig{
			CacheSoftLimit:  streaks.CacheSoftLimit,
			CacheMaxAge:     streaks.CacheMaxAge,
			GlobalFreshness: streaks.GlobalFreshness,
		},
		Rewards: RewardsConfig{DiamondsPerLevel: 10},
		Sweep:   SweepConfig{Interval: 5 * time.Minute},
	}
}

// DefaultPath returns $APOGEE_CONFIG, or ~/.apogee.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv("APOGEE_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".apogee.yaml"), nil
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path uses DefaultPath, and a
// missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv("APOGEE_DB", c.DBPath)
	c.User = getEnv("APOGEE_USER", c.User)
	c.Timezone = getEnv("APOGEE_TZ", c.Timezone)
	c.LogLevel = getEnv("APOGEE_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("APOGEE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("APOGEE_SWEEP_INTERVAL: %w", err)
		}
		c.Sweep.Interval = d
	}
	return nil
}

// Validate reports every invalid field, named by its yaml path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			errs = append(errs, fmt.Errorf("%s: must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			errs = append(errs, fmt.Errorf("%s: must satisfy %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %w", errors.Join(errs...))
}

// Location resolves Timezone, defaulting to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// EngineOptions builds the engine options this configuration describes.
func (c *Config) EngineOptions(logger *slog.Logger) (engine.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Location: loc,
		Logger:   logger,
		XP: engine.XPRules{
			DailyCap:     c.Ledger.DailyCap,
			OverflowRate: c.Ledger.OverflowRate,
			HardCap:      c.Ledger.HardCap,
			Rounding:     engine.Rounding(c.Ledger.Rounding),
		},
		GracePeriod:      time.Duration(c.Ledger.GraceHours) * time.Hour,
		DiamondsPerLevel: c.Rewards.DiamondsPerLevel,
		Streaks: engine.StreakRules{
			CacheSoftLimit:  c.Streaks.CacheSoftLimit,
			CacheMaxAge:     c.Streaks.CacheMaxAge,
			GlobalFreshness: c.Streaks.GlobalFreshness,
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
