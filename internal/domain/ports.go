package domain

import (
	"context"
	"time"
)

// GeoResolver geocodes free-form location text and builds static satellite
// image URLs. Instances are request-scoped; Close releases the underlying
// network client.
type GeoResolver interface {
	Resolve(ctx context.Context, location string) (Coordinates, error)

	// StaticImageURL is pure: identical inputs always yield an identical URL.
	StaticImageURL(c Coordinates, zoom, width, height int) string

	// PreviewURLs returns up to count image URLs for UI previews. Best
	// effort: it never fails, a bad input just yields an empty slice.
	PreviewURLs(c Coordinates, count int) []string

	Close() error
}

// PropertyFinder issues one paginated listing-API request per call and
// normalizes the response into PropertyRecords. Items without coordinates
// are dropped, output is capped at max.
type PropertyFinder interface {
	Search(ctx context.Context, location string, max int, filters *SearchFilters, page int) ([]PropertyRecord, error)
	Close() error
}

// ImageClassifier asks a vision model whether the outdoor space in an image
// is developed. It never returns an error: every failure mode degrades to an
// uncertain result carrying a diagnostic note. model/threshold override the
// configured defaults when non-zero (model != "", threshold >= 0).
type ImageClassifier interface {
	Classify(ctx context.Context, imageURL string, hint *Coordinates, model string, threshold float64) ClassificationResult
	Close() error
}

// Cache is the injected classification-result store. Implementations must be
// safe for concurrent use; entries expire after the ttl given to Set.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Clock abstracts time for deterministic cache-expiry tests.
type Clock interface {
	Now() time.Time
}
