package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"solar_leads/internal/domain"
)

// Providers builds request-scoped clients. Every pipeline run constructs its
// own set and closes them on all exit paths; only the classification cache
// behind the vision client is shared across requests.
type Providers struct {
	Geo    func() (domain.GeoResolver, error)
	Finder func() (domain.PropertyFinder, error)
	Vision func() (domain.ImageClassifier, error)
}

// Defaults used when a request leaves a knob unset.
type Defaults struct {
	MaxProperties      int
	PageSize           int
	MaxPages           int
	Zoom               int
	ImageWidth         int
	ImageHeight        int
	Model              string
	Threshold          float64
	ExclusionThreshold float64
	Country            string
}

type LeadService struct {
	providers Providers
	def       Defaults
}

func NewLeadService(p Providers, d Defaults) *LeadService {
	if d.MaxProperties <= 0 {
		d.MaxProperties = 50
	}
	if d.PageSize <= 0 {
		d.PageSize = 50
	}
	if d.MaxPages <= 0 {
		d.MaxPages = 5
	}
	if d.Zoom <= 0 {
		d.Zoom = 20
	}
	if d.ImageWidth <= 0 {
		d.ImageWidth = 512
	}
	if d.ImageHeight <= 0 {
		d.ImageHeight = 512
	}
	if d.Threshold <= 0 {
		d.Threshold = 0.4
	}
	if d.ExclusionThreshold <= 0 {
		d.ExclusionThreshold = 0.8
	}
	return &LeadService{providers: p, def: d}
}

// CountryCode reports the configured country filter (empty when disabled).
func (s *LeadService) CountryCode() string { return s.def.Country }

type ImageryOptions struct {
	Zoom   int
	Width  int
	Height int
}

type VisionOptions struct {
	Model               string
	ConfidenceThreshold *float64
}

type LeadRequest struct {
	Location      string
	MaxProperties int
	Filters       *domain.SearchFilters
	Imagery       *ImageryOptions
	Vision        *VisionOptions
}

type LocationValidation struct {
	Coords   domain.Coordinates
	Previews []domain.ImageryDescriptor
}

type ImageAnalysis struct {
	ImageURL     string
	Confidence   *float64
	SolarPresent *bool
}

type LeadAnalysis struct {
	Coords   domain.Coordinates
	Analyses []ImageAnalysis
}

// ValidateLocation geocodes the text and returns preview imagery for the UI.
// Preview failures degrade to an empty list; only geocoding itself can fail.
func (s *LeadService) ValidateLocation(ctx context.Context, location string) (LocationValidation, error) {
	geo, err := s.providers.Geo()
	if err != nil {
		return LocationValidation{}, err
	}
	defer closeQuietly(geo, "geo resolver")

	coords, err := geo.Resolve(ctx, location)
	if err != nil {
		return LocationValidation{}, err
	}

	previews := make([]domain.ImageryDescriptor, 0, 3)
	for _, u := range geo.PreviewURLs(coords, 3) {
		if u == "" {
			continue
		}
		previews = append(previews, domain.ImageryDescriptor{
			URL: u, Zoom: s.def.Zoom, Width: s.def.ImageWidth, Height: s.def.ImageHeight,
		})
	}
	return LocationValidation{Coords: coords, Previews: previews}, nil
}

// GenerateLead resolves the location and classifies up to limit preview
// images, reporting the legacy solar_present projection per image.
func (s *LeadService) GenerateLead(ctx context.Context, location string, limit int) (LeadAnalysis, error) {
	geo, err := s.providers.Geo()
	if err != nil {
		return LeadAnalysis{}, err
	}
	defer closeQuietly(geo, "geo resolver")

	coords, err := geo.Resolve(ctx, location)
	if err != nil {
		return LeadAnalysis{}, err
	}

	vision, err := s.providers.Vision()
	if err != nil {
		return LeadAnalysis{}, err
	}
	defer closeQuietly(vision, "vision classifier")

	out := LeadAnalysis{Coords: coords}
	seen := map[string]domain.ClassificationResult{}
	for _, u := range geo.PreviewURLs(coords, limit) {
		res, ok := seen[u]
		if !ok {
			res = vision.Classify(ctx, u, &coords, "", -1)
			seen[u] = res
		}
		out.Analyses = append(out.Analyses, ImageAnalysis{
			ImageURL:     u,
			Confidence:   res.Confidence,
			SolarPresent: res.Status.SolarPresent(),
		})
	}
	return out, nil
}

// GenerateLeads runs the full pipeline: resolve -> paginated fetch -> per
// property classify/score/filter -> rank -> truncate. Classification results
// are deduplicated by image URL within the run, on top of whatever the shared
// cache holds.
func (s *LeadService) GenerateLeads(ctx context.Context, req LeadRequest) ([]domain.LeadRecord, error) {
	target := req.MaxProperties
	if target <= 0 {
		target = s.def.MaxProperties
	}
	zoom, width, height := s.def.Zoom, s.def.ImageWidth, s.def.ImageHeight
	if req.Imagery != nil {
		if req.Imagery.Zoom > 0 {
			zoom = req.Imagery.Zoom
		}
		if req.Imagery.Width > 0 {
			width = req.Imagery.Width
		}
		if req.Imagery.Height > 0 {
			height = req.Imagery.Height
		}
	}
	model, threshold := s.def.Model, s.def.Threshold
	if req.Vision != nil {
		if req.Vision.Model != "" {
			model = req.Vision.Model
		}
		if req.Vision.ConfidenceThreshold != nil {
			threshold = *req.Vision.ConfidenceThreshold
		}
	}

	geo, err := s.providers.Geo()
	if err != nil {
		return nil, err
	}
	defer closeQuietly(geo, "geo resolver")

	// Resolving up front rejects bogus locations before listing quota is
	// spent; the listing search itself still runs on the raw text.
	if _, err := geo.Resolve(ctx, req.Location); err != nil {
		return nil, err
	}

	finder, err := s.providers.Finder()
	if err != nil {
		return nil, err
	}
	defer closeQuietly(finder, "property finder")

	props, err := s.fetchProperties(ctx, finder, req.Location, target, req.Filters)
	if err != nil {
		return nil, err
	}

	vision, err := s.providers.Vision()
	if err != nil {
		return nil, err
	}
	defer closeQuietly(vision, "vision classifier")

	seen := map[string]domain.ClassificationResult{}
	leads := make([]domain.LeadRecord, 0, len(props))
	for _, prop := range props {
		if prop.Coords == nil {
			continue // finder drops these already; belt and braces
		}
		imgURL := geo.StaticImageURL(*prop.Coords, zoom, width, height)

		res, ok := seen[imgURL]
		if !ok {
			res = vision.Classify(ctx, imgURL, prop.Coords, model, threshold)
			seen[imgURL] = res
		}

		// Keep uncertain and low-confidence developed calls: a lost lead
		// costs more than a wasted one.
		if res.Status == domain.StatusDeveloped && res.Confidence != nil && *res.Confidence > s.def.ExclusionThreshold {
			continue
		}

		leads = append(leads, domain.LeadRecord{
			Property:       prop,
			Imagery:        domain.ImageryDescriptor{URL: imgURL, Zoom: zoom, Width: width, Height: height},
			Classification: res,
			Score:          domain.Score(prop.Price, prop.LivingArea, prop.LotSize),
		})
	}

	// Rank before truncating so excluded and low-scoring properties never
	// consume the budget. Stable sort keeps input order on ties.
	sort.SliceStable(leads, func(i, j int) bool { return leads[i].Score > leads[j].Score })
	if len(leads) > target {
		leads = leads[:target]
	}
	return leads, nil
}

// fetchProperties over-fetches deliberately: classification and filtering
// remove a variable fraction of candidates. It stops at 2x the target, on a
// short page, or at the page ceiling - the ceiling is the real termination
// guarantee, the short-page heuristic is best effort.
func (s *LeadService) fetchProperties(ctx context.Context, finder domain.PropertyFinder, location string, target int, filters *domain.SearchFilters) ([]domain.PropertyRecord, error) {
	var props []domain.PropertyRecord
	for page := 1; page <= s.def.MaxPages && len(props) < target*2; page++ {
		batch, err := finder.Search(ctx, location, s.def.PageSize, filters, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("listing search: %w", err)
			}
			log.Warn().Err(err).Int("page", page).Msg("listing page failed, keeping earlier pages")
			break
		}
		props = append(props, batch...)
		log.Info().Int("page", page).Int("batch", len(batch)).Int("total", len(props)).Msg("fetched listing page")
		if len(batch) < s.def.PageSize {
			break
		}
	}
	return props, nil
}

func closeQuietly(c interface{ Close() error }, what string) {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Str("client", what).Msg("close failed")
	}
}
