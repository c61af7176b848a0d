package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"solar_leads/internal/adapters/googlemaps"
	server "solar_leads/internal/adapters/http_server"
	"solar_leads/internal/adapters/memcache"
	"solar_leads/internal/adapters/observability"
	"solar_leads/internal/adapters/rediscache"
	"solar_leads/internal/adapters/vision"
	"solar_leads/internal/adapters/zillow"
	"solar_leads/internal/app"
	"solar_leads/internal/domain"
	"solar_leads/internal/shared"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(reg)

	// The classification cache is the only state shared across requests.
	var cache domain.Cache
	if cfg.CacheEnabled {
		switch cfg.CacheBackend {
		case "redis":
			cache = rediscache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
			log.Info().Str("addr", cfg.RedisAddr).Msg("using redis classification cache")
		default:
			cache = memcache.New(nil)
			log.Info().Msg("using in-process classification cache")
		}
	} else {
		log.Info().Msg("classification cache disabled")
	}

	// Provider clients are request-scoped; the factories close over config.
	providers := app.Providers{
		Geo: func() (domain.GeoResolver, error) {
			return googlemaps.New(googlemaps.Options{
				APIKey:         cfg.MapsAPIKey,
				GeocodeBaseURL: cfg.GeocodeBaseURL,
				StaticBaseURL:  cfg.StaticBaseURL,
				CountryFilter:  cfg.CountryFilter,
				MapType:        cfg.MapType,
				Marker:         cfg.MapMarker,
				DefaultZoom:    cfg.MapZoom,
				DefaultSize:    cfg.MapImageSize,
			})
		},
		Finder: func() (domain.PropertyFinder, error) {
			return zillow.New(zillow.Options{
				APIKey:  cfg.ZillowAPIKey,
				BaseURL: cfg.ZillowAPIBase,
				Host:    cfg.ZillowHost,
			})
		},
		Vision: func() (domain.ImageClassifier, error) {
			return vision.New(vision.Options{
				APIKey:           cfg.VisionAPIKey,
				BaseURL:          cfg.VisionAPIBase,
				DefaultModel:     cfg.VisionModel,
				DefaultThreshold: cfg.VisionConfidenceThreshold,
				Timeout:          cfg.VisionTimeout,
				Cache:            cache,
				CacheTTL:         cfg.CacheTTL,
			}), nil
		},
	}

	svc := app.NewLeadService(providers, app.Defaults{
		MaxProperties:      cfg.MaxProperties,
		PageSize:           cfg.PageSize,
		MaxPages:           cfg.MaxPages,
		Zoom:               cfg.MapZoom,
		ImageWidth:         cfg.MapImageSize,
		ImageHeight:        cfg.MapImageSize,
		Model:              cfg.VisionModel,
		Threshold:          cfg.VisionConfidenceThreshold,
		ExclusionThreshold: cfg.ExclusionThreshold,
		Country:            cfg.CountryFilter,
	})

	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Leads: svc, Concurrency: int64(cfg.PipelineConcurrency)})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
