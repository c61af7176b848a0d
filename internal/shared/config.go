package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	// Google Maps (geocoding + static imagery)
	MapsAPIKey     string
	GeocodeBaseURL string
	StaticBaseURL  string
	CountryFilter  string // empty disables the region check
	MapZoom        int
	MapImageSize   int
	MapType        string
	MapMarker      bool

	// Zillow via the RapidAPI gateway
	ZillowAPIKey  string
	ZillowAPIBase string
	ZillowHost    string

	// Vision model
	VisionAPIKey              string
	VisionAPIBase             string
	VisionModel               string
	VisionConfidenceThreshold float64
	VisionTimeout             time.Duration

	// Classification cache
	CacheBackend string // memory | redis
	CacheEnabled bool
	CacheTTL     time.Duration
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// Pipeline tuning
	MaxProperties       int
	PageSize            int
	MaxPages            int
	ExclusionThreshold  float64
	PipelineConcurrency int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	abool := func(k string, def bool) bool {
		switch os.Getenv(k) {
		case "1", "true", "TRUE", "yes", "on":
			return true
		case "0", "false", "FALSE", "no", "off":
			return false
		}
		return def
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		MapsAPIKey:     env("GOOGLE_MAPS_API_KEY", ""),
		GeocodeBaseURL: env("MAPS_GEOCODE_BASE_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
		StaticBaseURL:  env("MAPS_STATIC_BASE_URL", "https://maps.googleapis.com/maps/api/staticmap"),
		CountryFilter:  env("MAPS_COUNTRY", "US"),
		MapZoom:        atoi("MAP_ZOOM", 20),
		MapImageSize:   atoi("MAP_IMAGE_SIZE", 512),
		MapType:        env("MAP_TYPE", "satellite"),
		MapMarker:      abool("MAP_MARKER", true),

		ZillowAPIKey:  env("ZILLOW_API_KEY", ""),
		ZillowAPIBase: env("ZILLOW_API_BASE", "https://zillow-com1.p.rapidapi.com"),
		ZillowHost:    env("ZILLOW_RAPIDAPI_HOST", "zillow-com1.p.rapidapi.com"),

		VisionAPIKey:              env("VISION_API_KEY", ""),
		VisionAPIBase:             env("VISION_API_BASE", "https://api.openai.com/v1"),
		VisionModel:               env("VISION_MODEL", "gpt-4o-mini"),
		VisionConfidenceThreshold: atof("VISION_CONFIDENCE_THRESHOLD", 0.4),
		VisionTimeout:             time.Duration(atoi("VISION_TIMEOUT_SECONDS", 15)) * time.Second,

		CacheBackend: env("VISION_CACHE_BACKEND", "memory"),
		CacheEnabled: abool("VISION_CACHE_ENABLED", true),
		CacheTTL:     time.Duration(atoi("VISION_CACHE_TTL_SECONDS", 3600)) * time.Second,
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),
		RedisPass:    env("REDIS_PASSWORD", ""),
		RedisDB:      atoi("REDIS_DB", 0),

		MaxProperties:       atoi("LEADS_MAX_PROPERTIES", 50),
		PageSize:            atoi("LEADS_PAGE_SIZE", 50),
		MaxPages:            atoi("LEADS_MAX_PAGES", 5),
		ExclusionThreshold:  atof("LEADS_EXCLUSION_THRESHOLD", 0.8),
		PipelineConcurrency: atoi("PIPELINE_CONCURRENCY", 4),
	}
	if c.MapsAPIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is empty")
	}
	if c.ZillowAPIKey == "" {
		log.Warn().Msg("ZILLOW_API_KEY is empty")
	}
	if c.VisionAPIKey == "" {
		log.Warn().Msg("VISION_API_KEY is empty; classifications will degrade to uncertain")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
