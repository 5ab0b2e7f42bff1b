package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	Redis          RedisConfig
	ICE            ICEConfig

	// KeepWaitingOnDisconnect controls whether a waiting participant's
	// disconnect leaves their identity in the persisted waiting set.
	// Off by default: stale waiting entries are removed, and a
	// reconnecting participant simply requests admission again.
	KeepWaitingOnDisconnect bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ICEConfig is consumed by the client-side peer orchestrator only; the
// signaling server never touches media.
type ICEConfig struct {
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		ICE: ICEConfig{
			STUNServer: getEnv("STUN_SERVER", "stun:stun.l.google.com:19302"),
			TURNServer: getEnv("TURN_SERVER", ""),
			TURNUser:   getEnv("TURN_USERNAME", ""),
			TURNPass:   getEnv("TURN_PASSWORD", ""),
		},
		KeepWaitingOnDisconnect: getBoolEnv("WAITING_ROOM_KEEP_ON_DISCONNECT", false),
	}
}

// STUNServers returns STUN server URLs for the pion configuration.
func (c *Config) STUNServers() []string {
	return []string{c.ICE.STUNServer}
}

// TURNServers returns TURN server URLs if a TURN host is configured.
func (c *Config) TURNServers() []string {
	if c.ICE.TURNServer == "" {
		return nil
	}
	return []string{c.ICE.TURNServer}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
