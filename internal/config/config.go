// Package config loads the core's environment-driven configuration,
// following the same GetEnv/GetEnvAsInt idiom the rest of the codebase uses
// so every default lives in one place instead of scattered across packages.
// GetEnv logs each resolved value at debug level; the typed helpers log only
// a warning when a value fails to parse.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/ragcore/internal/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	if log != nil {
		log.Debug("environment variable found, using environment", "value", val)
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("environment variable could not be parsed as int, using default", "env_var", key, "raw", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return i
}

func GetEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if log != nil {
			log.Warn("environment variable could not be parsed as float, using default", "env_var", key, "raw", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return f
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		if log != nil {
			log.Warn("environment variable could not be parsed as bool, using default", "env_var", key, "raw", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return b
}

func GetEnvAsDuration(key string, defaultVal time.Duration, log *logger.Logger) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		if log != nil {
			log.Warn("environment variable could not be parsed as duration, using default", "env_var", key, "raw", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return d
}

// Config is the fully-resolved, typed configuration for one process. It is
// read once at startup and passed by value into every component
// constructor, matching the teacher's "resolve env once, thread structs"
// convention.
type Config struct {
	Postgres  PostgresConfig
	Redis     RedisConfig
	Search    SearchConfig
	Ingest    IngestConfig
	Research  ResearchConfig
	Providers ProvidersConfig
	HTTP      HTTPConfig
	Cache     CacheConfig
}

type PostgresConfig struct {
	Host, Port, User, Password, Name string
}

type RedisConfig struct {
	Addr    string
	Channel string
}

type SearchConfig struct {
	Backend               string // "metastore" | "searchindex"
	HybridRRFK0           float64
	HybridMMREnable        bool
	HybridMMRLambda        float64
	RecencyBoostEnable     bool
	RecencyScaleDays       float64
	DefaultTopK            int
	PersistEmbeddingsInMeta bool
	EmbedDim               int // text embedding dimensionality, e.g. 384
	ImageEmbedDim          int // image embedding dimensionality, e.g. 768
}

// CacheConfig holds the TTLs and circuit-breaker tuning shared by the
// retriever, synthesizer, and cache packages, so they don't each hardcode
// their own constant.
type CacheConfig struct {
	SemanticTTL             time.Duration
	LLMTTL                  time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerCooldown  time.Duration
}

type IngestConfig struct {
	ChunkSize            int
	ChunkOverlap         int
	MaxBytesDownload     int64
	MaxPDFPagesRender    int
	MaxPDFPagesCaption   int
	MaxImageBytesDataURL int64
	BucketName           string
	DocAIProjectID       string
	DocAILocation        string
	DocAIProcessorID     string
	MinCharDensity       float64
	RetryAttempts        int
	RetryBaseDelay       time.Duration
	RetryMaxDelay        time.Duration
}

type ResearchConfig struct {
	WallClockBudget      time.Duration
	MaxIterations        int
	ConfidenceBaseline   float64
	ConfidenceThreshold  float64
	FollowupRelevanceMin float64
	CoverageHMin         int
	CoverageDMin         int
	CoverageDeltaMax     float64
	CoverageHeuristicMin float64
	SessionMaxAge        time.Duration
	WebSearchProvider    string // serpapi|bing|ddg|none
	LocalTopK            int
	WebTopK              int
	RetryLoops           int
	MissingConceptLoops  int
	MissingConceptTopK   int
	RecencyHalfLifeDays  float64
	RecencyBoost         float64
}

type ProvidersConfig struct {
	GeneratorProvider string // oci|openai|bedrock|ollama
	EmbedderProvider  string
}

type HTTPConfig struct {
	Port            string
	AllowOrigins    []string
}

func Load(log *logger.Logger) Config {
	return Config{
		Postgres: PostgresConfig{
			Host:     GetEnv("POSTGRES_HOST", "localhost", log),
			Port:     GetEnv("POSTGRES_PORT", "5432", log),
			User:     GetEnv("POSTGRES_USER", "postgres", log),
			Password: GetEnv("POSTGRES_PASSWORD", "", log),
			Name:     GetEnv("POSTGRES_NAME", "ragcore", log),
		},
		Redis: RedisConfig{
			Addr:    GetEnv("REDIS_ADDR", "localhost:6379", log),
			Channel: GetEnv("REDIS_ACTIVITY_CHANNEL", "activity", log),
		},
		Search: SearchConfig{
			Backend:                 GetEnv("SEARCH_BACKEND", "metastore", log),
			HybridRRFK0:             GetEnvAsFloat("HYBRID_RRF_K0", 60.0, log),
			HybridMMREnable:         GetEnvAsBool("HYBRID_MMR_ENABLE", true, log),
			HybridMMRLambda:         GetEnvAsFloat("HYBRID_MMR_LAMBDA", 0.5, log),
			RecencyBoostEnable:      GetEnvAsBool("RECENCY_BOOST_ENABLE", true, log),
			RecencyScaleDays:        GetEnvAsFloat("RECENCY_SCALE_DAYS", 30.0, log),
			DefaultTopK:             GetEnvAsInt("SEARCH_DEFAULT_TOP_K", 8, log),
			PersistEmbeddingsInMeta: GetEnvAsBool("PERSIST_EMBEDDINGS_IN_METASTORE", false, log),
			EmbedDim:                GetEnvAsInt("EMBED_DIM", 384, log),
			ImageEmbedDim:           GetEnvAsInt("IMAGE_EMBED_DIM", 768, log),
		},
		Ingest: IngestConfig{
			ChunkSize:            GetEnvAsInt("CHUNK_SIZE", 2500, log),
			ChunkOverlap:         GetEnvAsInt("CHUNK_OVERLAP", 250, log),
			MaxBytesDownload:     int64(GetEnvAsInt("MAX_BYTES_DOWNLOAD", 1<<30, log)),
			MaxPDFPagesRender:    GetEnvAsInt("MAX_PDF_PAGES_RENDER", 200, log),
			MaxPDFPagesCaption:   GetEnvAsInt("MAX_PDF_PAGES_CAPTION", 60, log),
			MaxImageBytesDataURL: int64(GetEnvAsInt("MAX_IMAGE_BYTES_DATA_URL", 3<<20, log)),
			BucketName:           GetEnv("INGEST_GCS_BUCKET_NAME", "", log),
			DocAIProjectID:       GetEnv("GCP_PROJECT_ID", "", log),
			DocAILocation:        GetEnv("DOCUMENTAI_LOCATION", "us", log),
			DocAIProcessorID:     GetEnv("DOCUMENTAI_PROCESSOR_ID", "", log),
			MinCharDensity:       GetEnvAsFloat("DOCAI_MIN_CHAR_DENSITY", 0.5, log),
			RetryAttempts:        GetEnvAsInt("INGEST_RETRY_ATTEMPTS", 3, log),
			RetryBaseDelay:       GetEnvAsDuration("INGEST_RETRY_BASE_DELAY", 500*time.Millisecond, log),
			RetryMaxDelay:        GetEnvAsDuration("INGEST_RETRY_MAX_DELAY", 5*time.Second, log),
		},
		Research: ResearchConfig{
			WallClockBudget:      GetEnvAsDuration("RESEARCH_WALL_CLOCK_BUDGET", 120*time.Second, log),
			MaxIterations:        GetEnvAsInt("RESEARCH_MAX_ITERATIONS", 4, log),
			ConfidenceBaseline:   GetEnvAsFloat("RESEARCH_CONFIDENCE_BASELINE", 0.3, log),
			ConfidenceThreshold:  GetEnvAsFloat("RESEARCH_CONFIDENCE_THRESHOLD", 0.4, log),
			FollowupRelevanceMin: GetEnvAsFloat("RESEARCH_FOLLOWUP_RELEVANCE_MIN", 0.08, log),
			CoverageHMin:         GetEnvAsInt("RESEARCH_COVERAGE_H_MIN", 4, log),
			CoverageDMin:         GetEnvAsInt("RESEARCH_COVERAGE_D_MIN", 2, log),
			CoverageDeltaMax:     GetEnvAsFloat("RESEARCH_COVERAGE_DELTA_MAX", 0.35, log),
			CoverageHeuristicMin: GetEnvAsFloat("RESEARCH_COVERAGE_HEURISTIC_MIN", 0.55, log),
			SessionMaxAge:        GetEnvAsDuration("RESEARCH_SESSION_MAX_AGE", 24*time.Hour, log),
			WebSearchProvider:    GetEnv("WEB_SEARCH_PROVIDER", "none", log),
			LocalTopK:            GetEnvAsInt("RESEARCH_LOCAL_TOP_K", 8, log),
			WebTopK:              GetEnvAsInt("RESEARCH_WEB_TOP_K", 8, log),
			RetryLoops:           GetEnvAsInt("RESEARCH_RETRY_LOOPS", 1, log),
			MissingConceptLoops:  GetEnvAsInt("RESEARCH_MISSING_CONCEPT_LOOPS", 1, log),
			MissingConceptTopK:   GetEnvAsInt("RESEARCH_MISSING_CONCEPT_TOP_K", 6, log),
			RecencyHalfLifeDays:  GetEnvAsFloat("RESEARCH_RECENCY_HALF_LIFE_DAYS", 180, log),
			RecencyBoost:         GetEnvAsFloat("RESEARCH_RECENCY_BOOST", 0.1, log),
		},
		Providers: ProvidersConfig{
			GeneratorProvider: GetEnv("GENERATOR_PROVIDER", "openai", log),
			EmbedderProvider:  GetEnv("EMBEDDER_PROVIDER", "openai", log),
		},
		HTTP: HTTPConfig{
			Port:         GetEnv("PORT", "8080", log),
			AllowOrigins: strings.Split(GetEnv("CORS_ALLOW_ORIGINS", "*", log), ","),
		},
		Cache: CacheConfig{
			SemanticTTL:             GetEnvAsDuration("CACHE_TTL_SEMANTIC", 300*time.Second, log),
			LLMTTL:                  GetEnvAsDuration("CACHE_TTL_LLM", 900*time.Second, log),
			CircuitBreakerThreshold: GetEnvAsInt("CACHE_BREAKER_THRESHOLD", 5, log),
			CircuitBreakerCooldown:  GetEnvAsDuration("CACHE_BREAKER_COOLDOWN", 60*time.Second, log),
		},
	}
}
