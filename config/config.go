// Package config loads service configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file, a .env
// file in the working directory, the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Projection ProjectionConfig `yaml:"projection"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// Path is a SQLite path; ":memory:" for a throwaway database.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ProjectionConfig holds the caller-side target policy. The engine itself
// only knows the 75% fallback.
type ProjectionConfig struct {
	DefaultTarget float64 `yaml:"default_target"`
	MinTarget     float64 `yaml:"min_target"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database:   DatabaseConfig{Path: "attendance.db"},
		Log:        LogConfig{Level: "info"},
		Projection: ProjectionConfig{DefaultTarget: 75, MinTarget: 75},
	}
}

// Load builds the configuration. path may be empty; a missing file at path
// is an error, a missing .env is not.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getenv("ATTENDANCE_ADDR", cfg.Server.Addr)
	if origins := getenv("ATTENDANCE_CORS_ORIGINS", ""); origins != "" {
		cfg.Server.CORSOrigins = strings.Split(origins, ",")
	}
	cfg.Database.Path = getenv("ATTENDANCE_DB", cfg.Database.Path)
	cfg.Log.Level = getenv("ATTENDANCE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.JSON = getenvBool("ATTENDANCE_LOG_JSON", cfg.Log.JSON)
	cfg.Projection.DefaultTarget = getenvFloat("ATTENDANCE_DEFAULT_TARGET", cfg.Projection.DefaultTarget)
	cfg.Projection.MinTarget = getenvFloat("ATTENDANCE_MIN_TARGET", cfg.Projection.MinTarget)
}

// Validate rejects targets outside (0, 100] and a default below the floor.
func (c Config) Validate() error {
	p := c.Projection
	if p.MinTarget < 0 || p.MinTarget > 100 {
		return fmt.Errorf("projection.min_target must be within [0, 100], got %v", p.MinTarget)
	}
	if p.DefaultTarget <= 0 || p.DefaultTarget > 100 {
		return fmt.Errorf("projection.default_target must be within (0, 100], got %v", p.DefaultTarget)
	}
	if p.DefaultTarget < p.MinTarget {
		return fmt.Errorf("projection.default_target %v is below min_target %v", p.DefaultTarget, p.MinTarget)
	}
	return nil
}

// EffectiveTarget applies the default to an unset or out-of-range target
// and raises it to the configured floor.
func (p ProjectionConfig) EffectiveTarget(requested float64) float64 {
	if math.IsNaN(requested) || requested < 1 || requested > 100 {
		requested = p.DefaultTarget
	}
	return max(requested, p.MinTarget)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
