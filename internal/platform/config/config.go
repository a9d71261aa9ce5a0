package config

import (
	"encoding/hex"
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string

	// MasterKey is the envelope-encryption master key (hex-encoded, 32 bytes).
	// When empty the encryption provider generates a throwaway key and logs a
	// loud warning; that mode is unsuitable for anything but development.
	MasterKey []byte

	PostgresURL string
	Redis       RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	// DirectoryCacheTTL bounds staleness of cached membership records used to
	// build principals. Decisions themselves are never cached.
	DirectoryCacheTTL time.Duration
}

// RedisConfig holds connection settings for the optional Redis cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("AEGIS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var masterKey []byte
	if raw := os.Getenv("AEGIS_MASTER_KEY"); raw != "" {
		if decoded, err := hex.DecodeString(raw); err == nil {
			masterKey = decoded
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "aegis.audit"
	}

	cacheTTL := 60 * time.Second
	if raw := os.Getenv("DIRECTORY_CACHE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			cacheTTL = parsed
		}
	}

	return Server{
		Addr:              addr,
		JWTSigningKey:     jwtSigningKey,
		MasterKey:         masterKey,
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		Redis:             redisFromEnv(),
		KafkaBrokers:      brokers,
		AuditTopic:        auditTopic,
		DirectoryCacheTTL: cacheTTL,
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
