package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderCohere = "cohere"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/news.db" description:"SQLite database file"`

	// Application configuration
	SourcesFile   string `long:"sources-file" env:"SOURCES_FILE" default:"./sources.yml" description:"YAML file overriding the built-in news sources"`
	Port          string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey  string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key guarding pipeline endpoints (optional)"`
	WorkerCount   int    `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background workers for scheduled tasks"`
	CronSchedule  string `long:"cron-schedule" env:"CRON_SCHEDULE" default:"*/30 * * * *" description:"Cron expression for scheduled ingestion (empty disables)"`
	FetchTimeout  int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`
	IngestDelayMS int    `long:"ingest-delay-ms" env:"INGEST_DELAY_MS" default:"100" description:"Delay between article writes in milliseconds"`

	// Model provider
	LLMProvider     string `long:"llm-provider" env:"LLM_PROVIDER" default:"gemini" choice:"gemini" choice:"cohere" description:"Generative model provider"`
	GeminiAPIKey    string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
	GeminiModel     string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.0-flash" description:"Gemini model name"`
	CohereAPIKey    string `long:"cohere-api-key" env:"COHERE_API_KEY" description:"Cohere API key"`
	CohereModel     string `long:"cohere-model" env:"COHERE_MODEL" default:"command-r-plus" description:"Cohere model name"`
	LLMTimeout      int    `long:"llm-timeout" env:"LLM_TIMEOUT" default:"60" description:"Model call timeout in seconds"`
	LLMRatePerMin   int    `long:"llm-rate-per-min" env:"LLM_RATE_PER_MIN" default:"15" description:"Maximum model calls per minute (0 disables throttling)"`
	SummaryLanguage string `long:"summary-language" env:"SUMMARY_LANGUAGE" default:"Thai" description:"Language the model is asked to answer in"`

	// Dedup cache
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the URL dedup cache (optional)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database index"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"CryptoNewsAggregator/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Bangkok)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	// A missing .env file is the normal case in containers.
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := raw.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		SourcesFile:     raw.SourcesFile,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		WorkerCount:     raw.WorkerCount,
		CronSchedule:    raw.CronSchedule,
		FetchTimeout:    time.Duration(raw.FetchTimeout) * time.Second,
		IngestDelay:     time.Duration(raw.IngestDelayMS) * time.Millisecond,
		LLMProvider:     raw.LLMProvider,
		GeminiAPIKey:    raw.GeminiAPIKey,
		GeminiModel:     raw.GeminiModel,
		CohereAPIKey:    raw.CohereAPIKey,
		CohereModel:     raw.CohereModel,
		LLMTimeout:      time.Duration(raw.LLMTimeout) * time.Second,
		LLMRatePerMin:   raw.LLMRatePerMin,
		SummaryLanguage: raw.SummaryLanguage,
		RedisAddr:       raw.RedisAddr,
		RedisPassword:   raw.RedisPassword,
		RedisDB:         raw.RedisDB,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func (r *rawCfg) validate() error {
	nonNegativeFields := map[string]int{
		"fetch timeout": r.FetchTimeout,
		"ingest delay":  r.IngestDelayMS,
		"llm timeout":   r.LLMTimeout,
		"llm rate":      r.LLMRatePerMin,
		"redis db":      r.RedisDB,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if r.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	slog.Debug("Timezone configured", "timezone", timezone)
	return nil
}
