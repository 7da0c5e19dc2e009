package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the service reads from the environment.
type Config struct {
	Addr string

	// DatabaseDSN is the default grade store. SecondaryDSN, when set, backs
	// the hosts listed in SecondaryHosts; requests from any other origin go
	// to the default store.
	DatabaseDSN    string
	SecondaryDSN   string
	SecondaryHosts []string

	RedisAddr string

	InferenceURL     string
	InferenceTimeout time.Duration

	JWTSecret   string
	JWTAudience string

	// Model class names. The deployed models decide these, so they are
	// configuration rather than constants.
	FrontLabel  string
	BackLabel   string
	TearLabel   string
	CreaseLabel string
}

// Load reads the environment, tolerating a missing .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:             getEnv("ADDR", ":8080"),
		DatabaseDSN:      getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=cardgrade port=5432 sslmode=disable"),
		SecondaryDSN:     os.Getenv("DATABASE_DSN_PROD"),
		SecondaryHosts:   splitHosts(getEnv("PROD_HOSTS", "api.tako.today,tako.today")),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		InferenceURL:     getEnv("INFERENCE_URL", "http://yolo-service:8000"),
		InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 30*time.Second),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:      os.Getenv("JWT_AUDIENCE"),
		FrontLabel:       getEnv("CARD_FRONT_LABEL", "Cardfront"),
		BackLabel:        getEnv("CARD_BACK_LABEL", "Cardback"),
		TearLabel:        getEnv("DEFECT_TEAR_LABEL", "tear"),
		CreaseLabel:      getEnv("DEFECT_CREASE_LABEL", "cease"),
	}
	return cfg, nil
}

func splitHosts(raw string) []string {
	var hosts []string
	for _, h := range strings.Split(raw, ",") {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
