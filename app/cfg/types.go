package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath string

	// Application configuration
	SourcesFile  string
	Port         string
	APIAccessKey string
	WorkerCount  int
	CronSchedule string
	FetchTimeout time.Duration
	IngestDelay  time.Duration

	// Model provider
	LLMProvider     string
	GeminiAPIKey    string
	GeminiModel     string
	CohereAPIKey    string
	CohereModel     string
	LLMTimeout      time.Duration
	LLMRatePerMin   int
	SummaryLanguage string

	// Dedup cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// LLMConfigured reports whether the selected provider has a credential.
func (c *Cfg) LLMConfigured() bool {
	switch c.LLMProvider {
	case ProviderCohere:
		return c.CohereAPIKey != ""
	default:
		return c.GeminiAPIKey != ""
	}
}
