package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	BindHost            string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	DashboardTTLSeconds int
	ShopTimezone        string
	LogLevel            string
	SeedDemo            bool
}

// Load reads the environment after applying an optional .env file. Variables
// already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("DASHBOARD_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}
	seed, err := strconv.ParseBool(getEnv("SEED_DEMO", "true"))
	if err != nil {
		seed = true
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		BindHost:            strings.TrimSpace(getEnv("BIND_HOST", "127.0.0.1")),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		DashboardTTLSeconds: ttl,
		ShopTimezone:        getEnv("SHOP_TIMEZONE", "America/Sao_Paulo"),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		SeedDemo:            seed,
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(c.BindHost, c.Port)
}

func (c Config) DashboardTTL() time.Duration {
	return time.Duration(c.DashboardTTLSeconds) * time.Second
}

// Location resolves the shop timezone, falling back to UTC when the zone
// database does not know it.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ShopTimezone)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", c.ShopTimezone, err)
	}
	return loc, nil
}

// Validate rejects bind hosts that are not loopback; the UI backend is not
// meant to be reachable from other machines.
func (c Config) Validate() error {
	host := c.BindHost
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("BIND_HOST must be a loopback address, got %q", host)
	}
	return nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
