package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	JWTSecret           string
	ReferenceTimezone   string
	LeaderboardCacheTTL time.Duration
	LeaderboardSize     int
	EventsChannel       string
	SubmitRateLimit     int
	ReviewRateLimit     int
	RateLimitWindow     time.Duration
	ShutdownTimeout     time.Duration
	AllowOrigins        []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Quest API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("reference_timezone", "America/Sao_Paulo")
	v.SetDefault("leaderboard.cache_ttl", "1m")
	v.SetDefault("leaderboard.size", 50)
	v.SetDefault("events.channel", "gema")
	v.SetDefault("rate_limit.submit", 10)
	v.SetDefault("rate_limit.review", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("shutdown_timeout", "5s")

	ttl, err := parseDuration(v, "leaderboard.cache_ttl", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid leaderboard cache ttl: %w", err)
	}
	window, err := parseDuration(v, "rate_limit.window", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}
	shutdown, err := parseDuration(v, "shutdown_timeout", 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		ReferenceTimezone:   v.GetString("reference_timezone"),
		LeaderboardCacheTTL: ttl,
		LeaderboardSize:     v.GetInt("leaderboard.size"),
		EventsChannel:       strings.TrimSpace(v.GetString("events.channel")),
		SubmitRateLimit:     v.GetInt("rate_limit.submit"),
		ReviewRateLimit:     v.GetInt("rate_limit.review"),
		RateLimitWindow:     window,
		ShutdownTimeout:     shutdown,
		AllowOrigins:        splitList(v.GetString("cors.allow_origins")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if _, err := time.LoadLocation(cfg.ReferenceTimezone); err != nil {
		return Config{}, fmt.Errorf("invalid reference timezone %q: %w", cfg.ReferenceTimezone, err)
	}

	if cfg.LeaderboardSize <= 0 || cfg.LeaderboardSize > 100 {
		cfg.LeaderboardSize = 50
	}
	if cfg.EventsChannel == "" {
		cfg.EventsChannel = "gema"
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
