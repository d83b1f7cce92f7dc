package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	Timezone    string

	HistoryLimit     int
	FeedPollInterval time.Duration
	FeedBatchSize    int

	RateLimitPerMinute        int
	RateLimitBurst            int
	StationRateLimitPerMinute int
	StationRateLimitBurst     int

	// Client-side settings shared by the kiosk, panel, and monitor
	// binaries.
	APIBaseURL          string
	StationID           string
	PanelPollInterval   time.Duration
	MonitorPollInterval time.Duration
	PrinterKind         string
	KioskResetDelay     time.Duration
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}
	timezone := os.Getenv("TIMEZONE")
	if timezone == "" {
		timezone = "America/Tegucigalpa"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),
		Timezone:    timezone,

		HistoryLimit:     readInt("MONITOR_HISTORY_LIMIT", 5),
		FeedPollInterval: readDurationMillis("FEED_POLL_INTERVAL_MS", 1000),
		FeedBatchSize:    readInt("FEED_BATCH_SIZE", 100),

		RateLimitPerMinute:        readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:            readInt("RATE_LIMIT_BURST", 30),
		StationRateLimitPerMinute: readInt("STATION_RATE_LIMIT_PER_MIN", 600),
		StationRateLimitBurst:     readInt("STATION_RATE_LIMIT_BURST", 120),

		APIBaseURL:          baseURL,
		StationID:           os.Getenv("STATION_ID"),
		PanelPollInterval:   readDurationSeconds("PANEL_POLL_INTERVAL_SECONDS", 5),
		MonitorPollInterval: readDurationMillis("MONITOR_POLL_INTERVAL_MS", 900),
		PrinterKind:         os.Getenv("KIOSK_PRINTER"),
		KioskResetDelay:     readDurationSeconds("KIOSK_RESET_DELAY_SECONDS", 10),
	}
}

// Location resolves the configured timezone, falling back to UTC so a
// bad TIMEZONE value never takes the service down.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("load timezone %q: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationMillis(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
