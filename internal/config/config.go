package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	DatabaseURL    string
	LogLevel       string
	OpenAIAPIKey   string
	OpenAIModel    string
	RankModel      string
	GeminiAPIKey   string
	EmbeddingModel string
	NatsURL        string
	NatsToken      string
	APIToken       string
	StallThreshold int
	ScoreThreshold float64
	SearchLimit    int
}

func Load() Config {
	// Local development reads a .env file; in deployment the vars
	// come from the environment and the file is absent.
	_ = godotenv.Load()

	return Config{
		Port:           envInt("INTAKE_PORT", 8750),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		OpenAIAPIKey:   envStr("OPENAI_API_KEY", ""),
		OpenAIModel:    envStr("INTAKE_MODEL", "gpt-4o-mini"),
		RankModel:      envStr("INTAKE_RANK_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:   envStr("GEMINI_API_KEY", ""),
		EmbeddingModel: envStr("EMBEDDING_MODEL", "gemini-embedding-exp-03-07"),
		NatsURL:        envStr("NATS_URL", ""),
		NatsToken:      envStr("NATS_TOKEN", ""),
		APIToken:       envStr("INTAKE_API_TOKEN", ""),
		StallThreshold: envInt("INTAKE_STALL_THRESHOLD", 3),
		ScoreThreshold: envFloat("INTAKE_SCORE_THRESHOLD", 0.84),
		SearchLimit:    envInt("INTAKE_SEARCH_LIMIT", 10),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
