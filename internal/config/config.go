package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string   `yaml:"port"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		// TTL bounds how long a loaded question bank is cached.
		TTL               string `yaml:"ttl"`
		QuestionsFile     string `yaml:"questions_file"`
		EnforceWindow     bool   `yaml:"enforce_window"`
		CountdownTick     string `yaml:"countdown_tick"`
		BroadcastInterval string `yaml:"broadcast_interval"`
		LeaderboardLimit  int    `yaml:"leaderboard_limit"`
	} `yaml:"quiz"`
	Admin struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	RateLimit struct {
		AnswersPerSecond float64 `yaml:"answers_per_second"`
		Burst            int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// Default returns the settings used for keys missing from the YAML file.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.Redis.TTL = "10m"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.EnforceWindow = true
	cfg.Quiz.CountdownTick = "1s"
	cfg.Quiz.BroadcastInterval = "500ms"
	cfg.Quiz.LeaderboardLimit = 20
	cfg.Admin.Username = "admin"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.RateLimit.AnswersPerSecond = 5
	cfg.RateLimit.Burst = 10
	return cfg
}

// Load reads YAML config from path on top of Default, then applies environment
// overrides. A .env file in the working directory is loaded first when present.
// A missing config file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := map[string]*string{
		"PORT":           &cfg.Server.Port,
		"REDIS_ADDR":     &cfg.Redis.Addr,
		"REDIS_PASSWORD": &cfg.Redis.Password,
		"POSTGRES_URL":   &cfg.Postgres.URL,
		"ADMIN_USERNAME": &cfg.Admin.Username,
		"ADMIN_PASSWORD": &cfg.Admin.Password,
		"LOG_LEVEL":      &cfg.Log.Level,
		"LOG_FORMAT":     &cfg.Log.Format,
		"QUESTIONS_FILE": &cfg.Quiz.QuestionsFile,
	}
	for key, dst := range setString {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = cfg.Server.AllowedOrigins[:0]
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origin)
			}
		}
	}
	if v := os.Getenv("ENFORCE_ANSWER_WINDOW"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENFORCE_ANSWER_WINDOW: %w", err)
		}
		cfg.Quiz.EnforceWindow = b
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
