package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	GoogleApiKey   string
	SearchApiKey   string
	SearchApiURL   string
	ExtractApiKey  string
	ExtractApiURL  string
	DatabaseURL    string
	ReasoningModel string
	FastModel      string
	EmbeddingModel string
	Port           string
	MaxDepth       int
	TimeLimit      time.Duration
	ChunkSize      int
	ChunkOverlap   int
	CollectionName string
}

func Load() *Config {
	return &Config{
		GoogleApiKey:   getEnv("GOOGLE_API_KEY", ""),
		SearchApiKey:   getEnv("SEARCH_API_KEY", ""),
		SearchApiURL:   getEnv("SEARCH_API_URL", "https://api.tavily.com"),
		ExtractApiKey:  getEnv("EXTRACT_API_KEY", ""),
		ExtractApiURL:  getEnv("EXTRACT_API_URL", "https://api.tavily.com"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ReasoningModel: getEnv("REASONING_MODEL", "gemini-3-pro-preview"),
		FastModel:      getEnv("FAST_MODEL", "gemini-3-flash-preview"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		Port:           getEnv("PORT", "8081"),
		MaxDepth:       getEnvAsInt("MAX_DEPTH", 7),
		TimeLimit:      time.Duration(getEnvAsInt("TIME_LIMIT_SECONDS", 270)) * time.Second,
		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 200),
		CollectionName: getEnv("COLLECTION_NAME", "research_findings"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
