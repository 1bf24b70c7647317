package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required for AI features)
// - LLM_API_URL: API endpoint URL (default: https://api.deepseek.com/v1)
// - LLM_MODEL: Model name to use (default: deepseek-chat)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 4000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Request timeout in seconds (default: 90)
//
// Subtitle Timing:
// - SUBTITLE_MIN_DURATION: minimum cue duration in seconds (default: 1.5)
// - SUBTITLE_MAX_DURATION: maximum cue duration in seconds (default: 8.0)
// - SUBTITLE_GAP: margin kept before the next cue in seconds (default: 0.1)
// - SUBTITLE_READING_SPEED: reading speed in chars/sec (default: 15)
//
// Pipeline:
// - CHECKPOINT_DIR: checkpoint directory (default: .checkpoints)
// - CHECKPOINT_MAX_AGE_DAYS: expire checkpoints older than this (default: 7)
// - OUTPUT_DIR: output directory for embedded videos (default: output)
// - TARGET_LANGUAGE: default translation target (default: id)
// - FIDELITY_MODE: economy or premium (default: economy)
// - EMBED_METHOD: soft or fast (default: soft)
// - WHISPER_CMD: transcription command (default: whisper)
// - WHISPER_MODEL: transcription model size (default: medium)
//
// Watch Service:
// - WATCH_DIR: directory scanned for new videos (default: /videos)
// - CRON_EXPR: scan schedule (default: "*/30 * * * *")
// - HISTORY_DB: run history database path (default: <CHECKPOINT_DIR>/history.db)
type Config struct {
	LLM       LLMConfig
	Timing    TimingConfig
	Pipeline  PipelineConfig
	Translate TranslateConfig
	Watch     WatchConfig
}

// LLMConfig holds the configuration for the LLM client
type LLMConfig struct {
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     int
}

// TimingConfig carries the timing-adjustment thresholds. Passed explicitly
// into the timing engine; there is no global mutable state.
type TimingConfig struct {
	MinDuration  time.Duration
	MaxDuration  time.Duration
	GapMargin    time.Duration
	ReadingSpeed float64 // characters per second
}

// DefaultTimingConfig returns the documented defaults.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		MinDuration:  1500 * time.Millisecond,
		MaxDuration:  8 * time.Second,
		GapMargin:    100 * time.Millisecond,
		ReadingSpeed: 15,
	}
}

// PipelineConfig holds per-run pipeline settings
type PipelineConfig struct {
	CheckpointDir    string
	CheckpointMaxAge time.Duration
	OutputDir        string
	FidelityPremium  bool
	EmbedMethod      string
	WhisperCmd       string
	WhisperModel     string
}

// TranslateConfig holds translation settings
type TranslateConfig struct {
	TargetLanguage language.Tag
	BatchSize      int
	ReviewBatch    int
	Confidence     int
	BatchDelay     time.Duration
}

// WatchConfig holds the watch service settings
type WatchConfig struct {
	Dir       string
	CronExpr  string
	HistoryDB string
}

// New loads configuration from the environment. A .env file in the working
// directory is honored when present.
func New() (*Config, error) {
	_ = godotenv.Load()

	checkpointDir := getEnvString("CHECKPOINT_DIR", ".checkpoints")

	cfg := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://api.deepseek.com/v1"),
			Model:       getEnvString("LLM_MODEL", "deepseek-chat"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 4000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 90),
		},
		Timing: TimingConfig{
			MinDuration:  secondsEnv("SUBTITLE_MIN_DURATION", 1.5),
			MaxDuration:  secondsEnv("SUBTITLE_MAX_DURATION", 8.0),
			GapMargin:    secondsEnv("SUBTITLE_GAP", 0.1),
			ReadingSpeed: getEnvFloat("SUBTITLE_READING_SPEED", 15),
		},
		Pipeline: PipelineConfig{
			CheckpointDir:    checkpointDir,
			CheckpointMaxAge: time.Duration(getEnvInt("CHECKPOINT_MAX_AGE_DAYS", 7)) * 24 * time.Hour,
			OutputDir:        getEnvString("OUTPUT_DIR", "output"),
			FidelityPremium:  getEnvString("FIDELITY_MODE", "economy") == "premium",
			EmbedMethod:      getEnvString("EMBED_METHOD", "soft"),
			WhisperCmd:       getEnvString("WHISPER_CMD", "whisper"),
			WhisperModel:     getEnvString("WHISPER_MODEL", "medium"),
		},
		Translate: TranslateConfig{
			TargetLanguage: language.All.Make(getEnvString("TARGET_LANGUAGE", "id")),
			BatchSize:      getEnvInt("TRANSLATE_BATCH_SIZE", 8),
			ReviewBatch:    getEnvInt("REVIEW_BATCH_SIZE", 50),
			Confidence:     getEnvInt("REVIEW_CONFIDENCE", 80),
			BatchDelay:     time.Duration(getEnvInt("BATCH_DELAY_MS", 200)) * time.Millisecond,
		},
		Watch: WatchConfig{
			Dir:       getEnvString("WATCH_DIR", "/videos"),
			CronExpr:  getEnvString("CRON_EXPR", "*/30 * * * *"),
			HistoryDB: getEnvString("HISTORY_DB", checkpointDir+"/history.db"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Timing.MinDuration <= 0 {
		return fmt.Errorf("SUBTITLE_MIN_DURATION must be positive")
	}
	if c.Timing.MaxDuration < c.Timing.MinDuration {
		return fmt.Errorf("SUBTITLE_MAX_DURATION must be >= SUBTITLE_MIN_DURATION")
	}
	if c.Translate.BatchSize <= 0 || c.Translate.ReviewBatch <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	return nil
}

func secondsEnv(key string, defaultValue float64) time.Duration {
	return time.Duration(getEnvFloat(key, defaultValue) * float64(time.Second))
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
