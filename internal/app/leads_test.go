package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"solar_leads/internal/app"
	"solar_leads/internal/domain"
)

/********** fakes **********/

type fakeGeo struct {
	coords     domain.Coordinates
	resolveErr error
	closed     bool
}

func (g *fakeGeo) Resolve(_ context.Context, _ string) (domain.Coordinates, error) {
	if g.resolveErr != nil {
		return domain.Coordinates{}, g.resolveErr
	}
	return g.coords, nil
}

func (g *fakeGeo) StaticImageURL(c domain.Coordinates, zoom, w, h int) string {
	return fmt.Sprintf("img://%v,%v/%d/%dx%d", c.Lat, c.Lng, zoom, w, h)
}

func (g *fakeGeo) PreviewURLs(c domain.Coordinates, count int) []string {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.StaticImageURL(c, 20, 512, 512))
	}
	return out
}

func (g *fakeGeo) Close() error { g.closed = true; return nil }

type fakeFinder struct {
	pages    [][]domain.PropertyRecord
	pageErrs map[int]error
	calls    []int
	closed   bool
}

func (f *fakeFinder) Search(_ context.Context, _ string, max int, _ *domain.SearchFilters, page int) ([]domain.PropertyRecord, error) {
	f.calls = append(f.calls, page)
	if err := f.pageErrs[page]; err != nil {
		return nil, err
	}
	if page > len(f.pages) {
		return nil, nil
	}
	batch := f.pages[page-1]
	if max > 0 && len(batch) > max {
		batch = batch[:max]
	}
	return batch, nil
}

func (f *fakeFinder) Close() error { f.closed = true; return nil }

type fakeVision struct {
	results map[string]domain.ClassificationResult
	calls   []string
	closed  bool
}

func (v *fakeVision) Classify(_ context.Context, imageURL string, _ *domain.Coordinates, _ string, _ float64) domain.ClassificationResult {
	v.calls = append(v.calls, imageURL)
	if res, ok := v.results[imageURL]; ok {
		return res
	}
	return domain.ClassificationResult{Status: domain.StatusUncertain}
}

func (v *fakeVision) Close() error { v.closed = true; return nil }

func service(geo *fakeGeo, finder *fakeFinder, vision *fakeVision, d app.Defaults) *app.LeadService {
	return app.NewLeadService(app.Providers{
		Geo:    func() (domain.GeoResolver, error) { return geo, nil },
		Finder: func() (domain.PropertyFinder, error) { return finder, nil },
		Vision: func() (domain.ImageClassifier, error) { return vision, nil },
	}, d)
}

func prop(lat, lng, price float64) domain.PropertyRecord {
	c := domain.Coordinates{Lat: lat, Lng: lng}
	return domain.PropertyRecord{Coords: &c, Price: &price}
}

func fp(f float64) *float64 { return &f }

/********** tests **********/

func TestGenerateLeads_ExclusionRule(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{{
		prop(1, 1, 100_000), // developed, high confidence -> excluded
		prop(2, 2, 200_000), // developed, low confidence -> kept
		prop(3, 3, 300_000), // uncertain without confidence -> kept
	}}}
	vision := &fakeVision{results: map[string]domain.ClassificationResult{
		geo.StaticImageURL(domain.Coordinates{Lat: 1, Lng: 1}, 20, 512, 512): {Status: domain.StatusDeveloped, Confidence: fp(0.95)},
		geo.StaticImageURL(domain.Coordinates{Lat: 2, Lng: 2}, 20, 512, 512): {Status: domain.StatusDeveloped, Confidence: fp(0.5)},
	}}

	svc := service(geo, finder, vision, app.Defaults{})
	leads, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("leads = %d, want 2 (confident developed property excluded)", len(leads))
	}
	for _, l := range leads {
		if *l.Property.Price == 100_000 {
			t.Fatalf("confidently developed property leaked through")
		}
	}
}

func TestGenerateLeads_RanksThenTruncates(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	// Cheapest first in input order; ranking must put pricier ones on top
	// before the limit applies.
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{{
		prop(1, 1, 100_000),
		prop(2, 2, 900_000),
		prop(3, 3, 500_000),
	}}}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{})
	leads, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x", MaxProperties: 2})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("leads = %d, want 2", len(leads))
	}
	if *leads[0].Property.Price != 900_000 || *leads[1].Property.Price != 500_000 {
		t.Fatalf("truncation ran before ranking: %v, %v", *leads[0].Property.Price, *leads[1].Property.Price)
	}
	if leads[0].Score < leads[1].Score {
		t.Fatalf("scores not descending: %v < %v", leads[0].Score, leads[1].Score)
	}
}

func TestGenerateLeads_StableTieOrder(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{{
		prop(1, 1, 400_000),
		prop(2, 2, 400_000),
	}}}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{})
	leads, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("leads = %d, want 2", len(leads))
	}
	if leads[0].Property.Coords.Lat != 1 || leads[1].Property.Coords.Lat != 2 {
		t.Fatalf("tied scores must keep input order: %v then %v", leads[0].Property.Coords.Lat, leads[1].Property.Coords.Lat)
	}
}

func TestGenerateLeads_DedupesIdenticalImages(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	// Two listings at the same coordinates share one satellite image.
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{{
		prop(5, 5, 100_000),
		prop(5, 5, 200_000),
		prop(6, 6, 300_000),
	}}}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{})
	leads, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(leads) != 3 {
		t.Fatalf("dedupe must not drop listings, got %d", len(leads))
	}
	if len(vision.calls) != 2 {
		t.Fatalf("classify calls = %d, want 2 (shared image classified once)", len(vision.calls))
	}
}

func TestGenerateLeads_PaginationStopsAtDoubleTarget(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	page := make([]domain.PropertyRecord, 0, 4)
	for i := 0; i < 4; i++ {
		page = append(page, prop(float64(i), float64(i), 100_000))
	}
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{page, page, page, page, page}}
	vision := &fakeVision{}

	// target 4 -> stop once 8 candidates are in hand, i.e. after 2 pages.
	svc := service(geo, finder, vision, app.Defaults{PageSize: 4, MaxPages: 5})
	if _, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x", MaxProperties: 4}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(finder.calls) != 2 {
		t.Fatalf("search calls = %v, want exactly 2 pages", finder.calls)
	}
}

func TestGenerateLeads_ShortPageEndsPagination(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{
		{prop(1, 1, 100_000), prop(2, 2, 100_000)},
		{prop(3, 3, 100_000)}, // short page: upstream has no more
	}}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{PageSize: 2, MaxPages: 5})
	leads, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x", MaxProperties: 10})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(finder.calls) != 2 {
		t.Fatalf("search calls = %v, want 2 (short page terminates)", finder.calls)
	}
	if len(leads) != 3 {
		t.Fatalf("leads = %d, want 3", len(leads))
	}
}

func TestGenerateLeads_PageCeiling(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	full := []domain.PropertyRecord{prop(1, 1, 100_000)}
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{full, full, full, full, full, full, full, full}}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{PageSize: 1, MaxPages: 3})
	if _, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x", MaxProperties: 50}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(finder.calls) != 3 {
		t.Fatalf("search calls = %v, ceiling of 3 must hold", finder.calls)
	}
}

func TestGenerateLeads_FirstPageErrorFails(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	finder := &fakeFinder{pageErrs: map[int]error{1: errors.New("upstream down")}}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{})
	_, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x"})
	if err == nil {
		t.Fatalf("expected failure when the first page errors")
	}
	if !geo.closed || !finder.closed {
		t.Fatalf("clients must close on the error path: geo=%v finder=%v", geo.closed, finder.closed)
	}
}

func TestGenerateLeads_LaterPageErrorDegrades(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	finder := &fakeFinder{
		pages:    [][]domain.PropertyRecord{{prop(1, 1, 100_000), prop(2, 2, 100_000)}},
		pageErrs: map[int]error{2: errors.New("flaky")},
	}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{PageSize: 2, MaxPages: 5})
	leads, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x", MaxProperties: 10})
	if err != nil {
		t.Fatalf("later-page failure must keep earlier results: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("leads = %d, want the 2 from page one", len(leads))
	}
}

func TestGenerateLeads_ResolveFailureSkipsSearch(t *testing.T) {
	geo := &fakeGeo{resolveErr: domain.ErrLocationNotFound}
	finder := &fakeFinder{}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{})
	_, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "nowhere"})
	if !errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
	if len(finder.calls) != 0 {
		t.Fatalf("listing quota spent on an unresolvable location")
	}
	if !geo.closed {
		t.Fatalf("geo client must close on the error path")
	}
}

func TestGenerateLeads_ClosesAllClientsOnSuccess(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	finder := &fakeFinder{pages: [][]domain.PropertyRecord{{prop(1, 1, 100_000)}}}
	vision := &fakeVision{}

	svc := service(geo, finder, vision, app.Defaults{})
	if _, err := svc.GenerateLeads(context.Background(), app.LeadRequest{Location: "x"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !geo.closed || !finder.closed || !vision.closed {
		t.Fatalf("all clients must close: geo=%v finder=%v vision=%v", geo.closed, finder.closed, vision.closed)
	}
}

func TestValidateLocation(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 32.95, Lng: -117.17}}
	svc := service(geo, &fakeFinder{}, &fakeVision{}, app.Defaults{})

	out, err := svc.ValidateLocation(context.Background(), "Carmel Valley")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Coords.Lat != 32.95 || out.Coords.Lng != -117.17 {
		t.Fatalf("unexpected coords: %+v", out.Coords)
	}
	if len(out.Previews) != 3 {
		t.Fatalf("previews = %d, want 3", len(out.Previews))
	}
	if !geo.closed {
		t.Fatalf("geo client not closed")
	}
}

func TestGenerateLead_SolarProjection(t *testing.T) {
	geo := &fakeGeo{coords: domain.Coordinates{Lat: 1, Lng: 1}}
	imgURL := geo.StaticImageURL(geo.coords, 20, 512, 512)
	vision := &fakeVision{results: map[string]domain.ClassificationResult{
		imgURL: {Status: domain.StatusDeveloped, Confidence: fp(0.9)},
	}}

	svc := service(geo, &fakeFinder{}, vision, app.Defaults{})
	out, err := svc.GenerateLead(context.Background(), "x", 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out.Analyses) != 2 {
		t.Fatalf("analyses = %d, want 2", len(out.Analyses))
	}
	if len(vision.calls) != 1 {
		t.Fatalf("identical preview URLs must classify once, got %d calls", len(vision.calls))
	}
	for _, a := range out.Analyses {
		if a.SolarPresent == nil || !*a.SolarPresent {
			t.Fatalf("developed status should project solar_present=true: %+v", a)
		}
	}
}
