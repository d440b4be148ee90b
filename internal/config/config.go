// Package config loads settings from environment variables with
// sensible defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/audio"
)

const (
	defaultAPIAddr     = ":8080"
	defaultPresenceTTL = 60 * 60 // 1 hour, seconds
	defaultServerURL   = "ws://localhost:8080/ws"
)

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

// Server holds relay server settings.
type Server struct {
	APIAddr        string        // listen address
	RedisAddr      string        // presence mirror; empty disables it
	PresenceTTL    time.Duration // TTL for mirrored presence records
	AllowedOrigins []string      // CORS
}

// Client holds capture/playback client settings.
type Client struct {
	ServerURL   string
	Room        string
	Username    string
	ThresholdDB float64       // VAD energy threshold
	Padding     time.Duration // VAD hold-over window
	BlockSize   int           // samples per block
	SampleRate  int
}

// LoadServer reads the server configuration from the environment.
func LoadServer() Server {
	return Server{
		APIAddr:        envOr("API_ADDR", defaultAPIAddr),
		RedisAddr:      envOr("REDIS_ADDR", ""),
		PresenceTTL:    time.Duration(envInt("PRESENCE_TTL_SEC", defaultPresenceTTL)) * time.Second,
		AllowedOrigins: envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
	}
}

// LoadClient reads the client configuration from the environment.
func LoadClient() Client {
	return Client{
		ServerURL:   envOr("ROOMCAST_URL", defaultServerURL),
		Room:        envOr("ROOMCAST_ROOM", ""),
		Username:    envOr("ROOMCAST_NAME", ""),
		ThresholdDB: envFloat("VAD_THRESHOLD_DB", audio.DefaultThresholdDB),
		Padding:     time.Duration(envInt("VAD_PADDING_MS", int(audio.DefaultPadding/time.Millisecond))) * time.Millisecond,
		BlockSize:   envInt("AUDIO_BLOCK_SIZE", audio.DefaultBlockSize),
		SampleRate:  envInt("AUDIO_SAMPLE_RATE", audio.DefaultSampleRate),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid integer, using default")
			return def
		}
		return i
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Warn().Str("key", key).Str("value", v).Float64("default", def).Msg("invalid number, using default")
			return def
		}
		return f
	}
	return def
}

func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
