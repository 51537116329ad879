package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Port        string
	MetricsPort string
	PprofPort   string
	Environment string
}

type TimeoutsConfig struct {
	Gate            time.Duration
	Intent          time.Duration
	RouteLLM        time.Duration
	PostConstraints time.Duration
	Geocoding       time.Duration
	Provider        time.Duration
	Total           time.Duration
	WebSearch       time.Duration
	EnrichmentJob   time.Duration
}

type RetriesConfig struct {
	Geocoding        int
	GeocodingBackoff time.Duration
	Places           int
	PlacesBackoff    time.Duration
	WebSearch        int
	WebSearchBackoff time.Duration
}

type CacheConfig struct {
	GeocodingSize int
	GeocodingTTL  time.Duration
	PlacesSize    int
	PlacesStatic  time.Duration
	PlacesLive    time.Duration
	RankingSize   int
	RankingTTL    time.Duration
	IntentSize    int
	IntentTTL     time.Duration
}

type FeaturesConfig struct {
	WoltEnrichment     bool
	TenbisEnrichment   bool
	MishlohaEnrichment bool
	WSRequireAuth      bool
	IntentMemo         bool
}

type LLMConfig struct {
	APIKey      string
	Model       string
	Temperature float64
}

type PlacesConfig struct {
	APIKey          string
	GeocodingAPIKey string
	BaseURL         string
	GeocodingURL    string
}

type WebSearchConfig struct {
	BraveAPIKey string
	BraveURL    string
	CSEKey      string
	CSECX       string
	CSEURL      string
}

type RedisConfig struct {
	URL string
}

type PostgresConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type SessionConfig struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	WriteTimeout      time.Duration
	BacklogCap        int
	BacklogTTL        time.Duration
	PendingTTL        time.Duration
	MaxConnsPerIP     int
	AllowedOrigins    []string
}

type SearchConfig struct {
	PipelineVersion string
	MinCityResults  int
	InitialResults  int
	ResultStep      int
	MaxResults      int
	MinQueryTokens  int
	DefaultRegion   string
}

type Config struct {
	Server    ServerConfig
	Timeouts  TimeoutsConfig
	Retries   RetriesConfig
	Cache     CacheConfig
	Features  FeaturesConfig
	LLM       LLMConfig
	Places    PlacesConfig
	WebSearch WebSearchConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Session   SessionConfig
	Search    SearchConfig
	JWTSecret string
}

// Load reads the whole environment contract once. Only the Gemini API key is
// hard-required; every optional collaborator (Redis, Postgres, web search)
// degrades when its key is absent.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvOrDefault("SERVER_PORT", "8080"),
			MetricsPort: getEnvOrDefault("METRICS_PORT", "9092"),
			PprofPort:   getEnvOrDefault("PPROF_PORT", "6060"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
		Timeouts: TimeoutsConfig{
			Gate:            getEnvMsOrDefault("TIMEOUT_GATE_MS", 5000),
			Intent:          getEnvMsOrDefault("TIMEOUT_INTENT_MS", 8000),
			RouteLLM:        getEnvMsOrDefault("TIMEOUT_ROUTE_LLM_MS", 6000),
			PostConstraints: getEnvMsOrDefault("TIMEOUT_POST_CONSTRAINTS_MS", 5000),
			Geocoding:       getEnvMsOrDefault("TIMEOUT_GEOCODING_MS", 3000),
			Provider:        getEnvMsOrDefault("TIMEOUT_PROVIDER_MS", 5000),
			Total:           getEnvMsOrDefault("TIMEOUT_TOTAL_MS", 15000),
			WebSearch:       getEnvMsOrDefault("TIMEOUT_WEBSEARCH_MS", 20000),
			EnrichmentJob:   getEnvMsOrDefault("TIMEOUT_ENRICHMENT_JOB_MS", 30000),
		},
		Retries: RetriesConfig{
			Geocoding:        getEnvIntOrDefault("RETRY_GEOCODING", 2),
			GeocodingBackoff: getEnvMsOrDefault("RETRY_GEOCODING_BACKOFF_MS", 500),
			Places:           getEnvIntOrDefault("RETRY_PLACES", 2),
			PlacesBackoff:    getEnvMsOrDefault("RETRY_PLACES_BACKOFF_MS", 1000),
			WebSearch:        getEnvIntOrDefault("RETRY_WEBSEARCH", 3),
			WebSearchBackoff: getEnvMsOrDefault("RETRY_WEBSEARCH_BACKOFF_MS", 1000),
		},
		Cache: CacheConfig{
			GeocodingSize: getEnvIntOrDefault("CACHE_GEOCODING_SIZE", 500),
			GeocodingTTL:  getEnvMsOrDefault("CACHE_GEOCODING_TTL_MS", int((24 * time.Hour).Milliseconds())),
			PlacesSize:    getEnvIntOrDefault("CACHE_PLACES_SIZE", 1000),
			PlacesStatic:  getEnvMsOrDefault("CACHE_PLACES_STATIC_TTL_MS", int(time.Hour.Milliseconds())),
			PlacesLive:    getEnvMsOrDefault("CACHE_PLACES_LIVE_TTL_MS", int((5 * time.Minute).Milliseconds())),
			RankingSize:   getEnvIntOrDefault("CACHE_RANKING_SIZE", 500),
			RankingTTL:    getEnvMsOrDefault("CACHE_RANKING_TTL_MS", int((15 * time.Minute).Milliseconds())),
			IntentSize:    getEnvIntOrDefault("CACHE_INTENT_SIZE", 200),
			IntentTTL:     getEnvMsOrDefault("CACHE_INTENT_TTL_MS", int((10 * time.Minute).Milliseconds())),
		},
		Features: FeaturesConfig{
			WoltEnrichment:     getEnvBoolOrDefault("ENABLE_WOLT_ENRICHMENT", true),
			TenbisEnrichment:   getEnvBoolOrDefault("ENABLE_TENBIS_ENRICHMENT", true),
			MishlohaEnrichment: getEnvBoolOrDefault("ENABLE_MISHLOHA_ENRICHMENT", true),
			WSRequireAuth:      getEnvBoolOrDefault("WS_REQUIRE_AUTH", true),
			IntentMemo:         getEnvBoolOrDefault("INTENT_MEMO_ENABLED", false),
		},
		LLM: LLMConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature: getEnvFloatOrDefault("GEMINI_TEMPERATURE", 0.2),
		},
		Places: PlacesConfig{
			APIKey:          os.Getenv("GOOGLE_PLACES_API_KEY"),
			GeocodingAPIKey: getEnvOrDefault("GOOGLE_GEOCODING_API_KEY", os.Getenv("GOOGLE_PLACES_API_KEY")),
			BaseURL:         getEnvOrDefault("GOOGLE_PLACES_BASE_URL", "https://places.googleapis.com/v1"),
			GeocodingURL:    getEnvOrDefault("GOOGLE_GEOCODING_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
		},
		WebSearch: WebSearchConfig{
			BraveAPIKey: os.Getenv("BRAVE_SEARCH_API_KEY"),
			BraveURL:    getEnvOrDefault("BRAVE_SEARCH_URL", "https://api.search.brave.com/res/v1/web/search"),
			CSEKey:      os.Getenv("GOOGLE_CSE_KEY"),
			CSECX:       os.Getenv("GOOGLE_CSE_CX"),
			CSEURL:      getEnvOrDefault("GOOGLE_CSE_URL", "https://www.googleapis.com/customsearch/v1"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Postgres: PostgresConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: 30,
			MinConns: 5,
		},
		Session: SessionConfig{
			HeartbeatInterval: getEnvMsOrDefault("WS_HEARTBEAT_MS", 30000),
			IdleTimeout:       getEnvMsOrDefault("WS_IDLE_TIMEOUT_MS", int((5 * time.Minute).Milliseconds())),
			WriteTimeout:      getEnvMsOrDefault("WS_WRITE_TIMEOUT_MS", 10000),
			BacklogCap:        getEnvIntOrDefault("WS_BACKLOG_CAP", 50),
			BacklogTTL:        getEnvMsOrDefault("WS_BACKLOG_TTL_MS", int((2 * time.Minute).Milliseconds())),
			PendingTTL:        getEnvMsOrDefault("WS_PENDING_TTL_MS", 90000),
			MaxConnsPerIP:     getEnvIntOrDefault("WS_MAX_CONNS_PER_IP", 10),
			AllowedOrigins:    splitCSV(getEnvOrDefault("WS_ALLOWED_ORIGINS", "")),
		},
		Search: SearchConfig{
			PipelineVersion: getEnvOrDefault("PIPELINE_VERSION", "v1"),
			MinCityResults:  getEnvIntOrDefault("MIN_CITY_RESULTS", 5),
			InitialResults:  getEnvIntOrDefault("SEARCH_INITIAL_RESULTS", 10),
			ResultStep:      getEnvIntOrDefault("SEARCH_RESULT_STEP", 5),
			MaxResults:      getEnvIntOrDefault("SEARCH_MAX_RESULTS", 20),
			MinQueryTokens:  getEnvIntOrDefault("SEARCH_MIN_QUERY_TOKENS", 1),
			DefaultRegion:   getEnvOrDefault("SEARCH_DEFAULT_REGION", "IL"),
		},
		JWTSecret: os.Getenv("JWT_SECRET_KEY"),
	}

	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.Features.WSRequireAuth && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is required when WS_REQUIRE_AUTH is enabled")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvMsOrDefault(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvIntOrDefault(key, defaultMs)) * time.Millisecond
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
