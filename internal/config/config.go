package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// upstream endpoint
	Endpoint       string  `yaml:"endpoint"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxRetries     int     `yaml:"max_retries"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`

	// engine knobs
	MaxChunkRunes     int `yaml:"max_chunk_runes"`
	MaxInputTokens    int `yaml:"max_input_tokens"`
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
	CacheTTLSeconds   int `yaml:"cache_ttl_seconds"`

	// http api
	ListenAddr string `yaml:"listen_addr"`
	JWTSecret  string `yaml:"jwt_secret"`
	APISecret  string `yaml:"api_secret"`

	// storage
	DBPath string `yaml:"db_path"`

	// optional redis second cache tier; empty addr disables it
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// optional rabbitmq event publishing; empty url disables it
	RabbitURL   string `yaml:"rabbit_url"`
	RabbitQueue string `yaml:"rabbit_queue"`

	// extra prompt presets registered on top of the built-ins
	Presets []PresetConfig `yaml:"presets"`
}

type PresetConfig struct {
	Name   string `yaml:"name"`
	System string `yaml:"system"`
}

// Load builds the config from environment variables, then overlays a
// YAML file when path is non-empty. File values win over env values;
// env wins over defaults.
func Load(path string) (Config, error) {
	cfg := fromEnv()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if cfg.Endpoint == "" {
		return Config{}, fmt.Errorf("endpoint is required (set ENDPOINT or endpoint in the config file)")
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("api key is required (set API_KEY or api_key in the config file)")
	}
	return cfg, nil
}

func fromEnv() Config {
	return Config{
		Endpoint:       os.Getenv("ENDPOINT"),
		APIKey:         os.Getenv("API_KEY"),
		Model:          envStr("MODEL", "gpt-4o-mini"),
		Temperature:    envFloat("TEMPERATURE", 0.3),
		MaxRetries:     envInt("MAX_RETRIES", 3),
		TimeoutSeconds: envInt("TIMEOUT_SECONDS", 60),

		MaxChunkRunes:     envInt("MAX_CHUNK_RUNES", 1500),
		MaxInputTokens:    envInt("MAX_INPUT_TOKENS", 8000),
		RequestsPerMinute: envInt("REQUESTS_PER_MINUTE", 10),
		RequestsPerDay:    envInt("REQUESTS_PER_DAY", 500),
		CacheTTLSeconds:   envInt("CACHE_TTL_SECONDS", 300),

		ListenAddr: envStr("LISTEN_ADDR", ":8080"),
		JWTSecret:  envStr("JWT_SECRET", "dev-secret-change-me"),
		APISecret:  os.Getenv("API_SECRET"),

		DBPath: envStr("DB_PATH", "transq.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: envStr("RABBIT_QUEUE", "translation_events"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
