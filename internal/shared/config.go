package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"offer_console/internal/domain"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	HTTPTimeout time.Duration

	OfferAPIBase  string
	OfferAPIToken string
	OfferAPIRPS   int
	ImageBaseURL  string

	DefaultLang        domain.Lang
	IncludeUnavailable bool

	// RedisAddr empty selects the in-process cache.
	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration
	CacheSize int

	ImportWorkers int
}

// Load reads the environment, after merging an optional .env file.
// Variables already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(env("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read env file")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:             env("APP_ENV", "prod"),
		LogLevel:           env("LOG_LEVEL", "info"),
		HTTPAddr:           env("HTTP_ADDR", ":8080"),
		MetricsAddr:        env("METRICS_ADDR", ":9100"),
		HTTPTimeout:        time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		OfferAPIBase:       env("OFFER_API_BASE_URL", "http://localhost:5000/api"),
		OfferAPIToken:      env("OFFER_API_TOKEN", ""),
		OfferAPIRPS:        atoi("OFFER_API_RPS", 10),
		DefaultLang:        domain.ParseLang(env("DEFAULT_LANG", "en")),
		IncludeUnavailable: envBool("INCLUDE_UNAVAILABLE", true),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPass:          env("REDIS_PASSWORD", ""),
		RedisDB:            atoi("REDIS_DB", 0),
		CacheTTL:           time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		CacheSize:          atoi("CACHE_SIZE", 64),
		ImportWorkers:      atoi("IMPORT_WORKERS", 4),
	}
	// uploads are served next to the API unless configured otherwise
	c.ImageBaseURL = env("IMAGE_BASE_URL", strings.TrimSuffix(strings.TrimRight(c.OfferAPIBase, "/"), "/api"))

	if c.OfferAPIToken == "" {
		log.Warn().Msg("OFFER_API_TOKEN is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
