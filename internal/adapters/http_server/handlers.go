// internal/adapters/http_server/handlers.go
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"solar_leads/internal/app"
	"solar_leads/internal/domain"
	"solar_leads/internal/export"
)

const (
	mediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mediaTypeCSV  = "text/csv"
)

type Handlers struct {
	Leads *app.LeadService

	// Concurrency bounds simultaneous pipeline runs; <= 0 means 4.
	Concurrency int64
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	s.mux.Post("/validate-location", h.validateLocation)

	n := h.Concurrency
	if n <= 0 {
		n = 4
	}
	s.mux.Group(func(g chi.Router) {
		g.Use(ConcurrencyLimit(n))
		g.Post("/generate-lead", h.generateLead)
		g.Post("/leads", h.createLeads)
		g.Post("/leads/excel", h.createLeadsExcel)
		g.Post("/leads/csv", h.createLeadsCSV)
	})
}

/********** request bodies **********/

type locationRequest struct {
	Location string `json:"location"`
}

type generateLeadRequest struct {
	Location string `json:"location"`
	Limit    int    `json:"limit"`
}

type zillowFilters struct {
	MinPrice        *int   `json:"min_price,omitempty"`
	MaxPrice        *int   `json:"max_price,omitempty"`
	BedsMin         *int   `json:"beds_min,omitempty"`
	BathsMin        *int   `json:"baths_min,omitempty"`
	HomeType        string `json:"home_type,omitempty"`
	StatusType      string `json:"status_type,omitempty"`
	NewConstruction *bool  `json:"is_new_construction,omitempty"`
	Auction         *bool  `json:"is_auction,omitempty"`
	Foreclosure     *bool  `json:"is_foreclosure,omitempty"`
	LotSizeMin      *int   `json:"lot_size_min,omitempty"`
	Keywords        string `json:"keywords,omitempty"`
	Coordinates     string `json:"coordinates,omitempty"`
	Polygon         string `json:"polygon,omitempty"`
}

type imagerySize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type imageryOptions struct {
	Zoom int         `json:"zoom"`
	Size imagerySize `json:"size"`
}

type visionOptions struct {
	Model               string   `json:"model,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

type leadsRequest struct {
	Location      string          `json:"location"`
	MaxProperties int             `json:"max_properties"`
	ZillowFilters *zillowFilters  `json:"zillow_filters,omitempty"`
	Imagery       *imageryOptions `json:"imagery,omitempty"`
	Vision        *visionOptions  `json:"vision,omitempty"`
}

/********** response bodies **********/

type previewImage struct {
	URL             string  `json:"url"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Zoom            int     `json:"zoom"`
	CenterLongitude float64 `json:"center_longitude"`
	CenterLatitude  float64 `json:"center_latitude"`
}

type validateLocationResponse struct {
	Longitude   float64        `json:"longitude"`
	Latitude    float64        `json:"latitude"`
	CountryCode string         `json:"country_code"`
	Confidence  float64        `json:"confidence"`
	Previews    []previewImage `json:"previews"`
}

type roofAnalysis struct {
	ImageURL     string   `json:"image_url"`
	Confidence   *float64 `json:"confidence"`
	SolarPresent *bool    `json:"solar_present"`
}

type generateLeadResponse struct {
	Longitude float64        `json:"longitude"`
	Latitude  float64        `json:"latitude"`
	Analyses  []roofAnalysis `json:"analyses"`
	Count     int            `json:"count"`
}

type coordinatesJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type zillowMeta struct {
	ZPID       *string  `json:"zpid"`
	Price      *float64 `json:"price"`
	Beds       *float64 `json:"beds"`
	Baths      *float64 `json:"baths"`
	LivingArea *float64 `json:"livingArea"`
	LotSize    *float64 `json:"lotSize"`
}

type imageryMeta struct {
	ImageURL string      `json:"image_url"`
	Zoom     int         `json:"zoom"`
	Size     imagerySize `json:"size"`
}

type visionMeta struct {
	BackyardStatus string   `json:"backyard_status"`
	Confidence     *float64 `json:"confidence"`
	SolarPresent   *bool    `json:"solar_present"`
	Model          string   `json:"model"`
	Notes          *string  `json:"notes,omitempty"`
}

type leadItem struct {
	Address     *string         `json:"address"`
	Coordinates coordinatesJSON `json:"coordinates"`
	Zillow      zillowMeta      `json:"zillow"`
	Imagery     imageryMeta     `json:"imagery"`
	Vision      visionMeta      `json:"vision"`
	LeadScore   float64         `json:"lead_score"`
}

type leadsResponse struct {
	Location string          `json:"location"`
	Count    int             `json:"count"`
	Leads    []leadItem      `json:"leads"`
	Excel    *export.Payload `json:"excel"`
	CSV      *export.Payload `json:"csv"`
}

/********** handlers **********/

func (h *Handlers) validateLocation(w http.ResponseWriter, r *http.Request) {
	var body locationRequest
	if !decodeBody(w, r, &body) {
		return
	}
	out, err := h.Leads.ValidateLocation(r.Context(), body.Location)
	if err != nil {
		writeError(w, err)
		return
	}

	previews := make([]previewImage, 0, len(out.Previews))
	for _, p := range out.Previews {
		previews = append(previews, previewImage{
			URL: p.URL, Width: p.Width, Height: p.Height, Zoom: p.Zoom,
			CenterLongitude: out.Coords.Lng, CenterLatitude: out.Coords.Lat,
		})
	}
	render.JSON(w, r, validateLocationResponse{
		Longitude:   out.Coords.Lng,
		Latitude:    out.Coords.Lat,
		CountryCode: h.Leads.CountryCode(),
		Confidence:  1.0,
		Previews:    previews,
	})
}

func (h *Handlers) generateLead(w http.ResponseWriter, r *http.Request) {
	var body generateLeadRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Limit <= 0 {
		body.Limit = 20
	}
	out, err := h.Leads.GenerateLead(r.Context(), body.Location, body.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	analyses := make([]roofAnalysis, 0, len(out.Analyses))
	for _, a := range out.Analyses {
		analyses = append(analyses, roofAnalysis{ImageURL: a.ImageURL, Confidence: a.Confidence, SolarPresent: a.SolarPresent})
	}
	render.JSON(w, r, generateLeadResponse{
		Longitude: out.Coords.Lng,
		Latitude:  out.Coords.Lat,
		Analyses:  analyses,
		Count:     len(analyses),
	})
}

func (h *Handlers) createLeads(w http.ResponseWriter, r *http.Request) {
	body, leads, ok := h.runPipeline(w, r)
	if !ok {
		return
	}

	items := make([]leadItem, 0, len(leads))
	for _, l := range leads {
		items = append(items, toLeadItem(l))
	}

	// CSV first; Excel only as a fallback. Neither failing fails the
	// request -- the fields just come back null.
	var csvPayload, excelPayload *export.Payload
	csvPayload, err := export.ToCSVBase64(leads, export.Filename(body.Location, ".csv"))
	if err != nil {
		log.Error().Err(err).Msg("csv payload generation failed")
		excelPayload, err = export.ToXLSXBase64(leads, export.Filename(body.Location, ".xlsx"))
		if err != nil {
			log.Error().Err(err).Msg("excel payload generation failed")
			excelPayload = nil
		}
	}

	render.JSON(w, r, leadsResponse{
		Location: body.Location,
		Count:    len(items),
		Leads:    items,
		Excel:    excelPayload,
		CSV:      csvPayload,
	})
}

func (h *Handlers) createLeadsExcel(w http.ResponseWriter, r *http.Request) {
	body, leads, ok := h.runPipeline(w, r)
	if !ok {
		return
	}
	data, err := export.ToXLSX(leads)
	if err != nil {
		log.Error().Err(err).Msg("excel export failed")
		writeProblem(w, http.StatusInternalServerError, "Export Failed", "could not build spreadsheet")
		return
	}
	writeAttachment(w, data, export.Filename(body.Location, ".xlsx"), mediaTypeXLSX)
}

func (h *Handlers) createLeadsCSV(w http.ResponseWriter, r *http.Request) {
	body, leads, ok := h.runPipeline(w, r)
	if !ok {
		return
	}
	data, err := export.ToCSV(leads)
	if err != nil {
		log.Error().Err(err).Msg("csv export failed")
		writeProblem(w, http.StatusInternalServerError, "Export Failed", "could not build CSV")
		return
	}
	writeAttachment(w, data, export.Filename(body.Location, ".csv"), mediaTypeCSV)
}

// runPipeline decodes a leads request, runs the pipeline, and writes the
// error response itself when something fails.
func (h *Handlers) runPipeline(w http.ResponseWriter, r *http.Request) (leadsRequest, []domain.LeadRecord, bool) {
	var body leadsRequest
	if !decodeBody(w, r, &body) {
		return body, nil, false
	}
	req := app.LeadRequest{
		Location:      body.Location,
		MaxProperties: body.MaxProperties,
		Filters:       body.ZillowFilters.toDomain(),
	}
	if body.Imagery != nil {
		req.Imagery = &app.ImageryOptions{Zoom: body.Imagery.Zoom, Width: body.Imagery.Size.W, Height: body.Imagery.Size.H}
	}
	if body.Vision != nil {
		req.Vision = &app.VisionOptions{Model: body.Vision.Model, ConfidenceThreshold: body.Vision.ConfidenceThreshold}
	}
	leads, err := h.Leads.GenerateLeads(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return body, nil, false
	}
	return body, leads, true
}

func (f *zillowFilters) toDomain() *domain.SearchFilters {
	if f == nil {
		return nil
	}
	return &domain.SearchFilters{
		MinPrice:        f.MinPrice,
		MaxPrice:        f.MaxPrice,
		BedsMin:         f.BedsMin,
		BathsMin:        f.BathsMin,
		HomeType:        f.HomeType,
		StatusType:      f.StatusType,
		NewConstruction: f.NewConstruction,
		Auction:         f.Auction,
		Foreclosure:     f.Foreclosure,
		LotSizeMin:      f.LotSizeMin,
		Keywords:        f.Keywords,
		Coordinates:     f.Coordinates,
		Polygon:         f.Polygon,
	}
}

func toLeadItem(l domain.LeadRecord) leadItem {
	var coords coordinatesJSON
	if l.Property.Coords != nil {
		coords = coordinatesJSON{Lat: l.Property.Coords.Lat, Lng: l.Property.Coords.Lng}
	}
	return leadItem{
		Address:     l.Property.Address,
		Coordinates: coords,
		Zillow: zillowMeta{
			ZPID:       l.Property.ExternalID,
			Price:      l.Property.Price,
			Beds:       l.Property.Beds,
			Baths:      l.Property.Baths,
			LivingArea: l.Property.LivingArea,
			LotSize:    l.Property.LotSize,
		},
		Imagery: imageryMeta{
			ImageURL: l.Imagery.URL,
			Zoom:     l.Imagery.Zoom,
			Size:     imagerySize{W: l.Imagery.Width, H: l.Imagery.Height},
		},
		Vision: visionMeta{
			BackyardStatus: string(l.Classification.Status),
			Confidence:     l.Classification.Confidence,
			SolarPresent:   l.Classification.Status.SolarPresent(),
			Model:          l.Classification.Model,
			Notes:          l.Classification.Notes,
		},
		LeadScore: l.Score,
	}
}

/********** plumbing **********/

// decodeBody parses the JSON body and enforces the one field every endpoint
// needs: a non-empty location. Writes the 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return false
	}
	type located interface{ location() string }
	if l, ok := dst.(located); ok && l.location() == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "location is required")
		return false
	}
	return true
}

func (b *locationRequest) location() string     { return b.Location }
func (b *generateLeadRequest) location() string { return b.Location }
func (b *leadsRequest) location() string        { return b.Location }

func writeAttachment(w http.ResponseWriter, data []byte, filename, mediaType string) {
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("failed to write attachment body")
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var ue *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		writeProblem(w, http.StatusInternalServerError, "Not Configured", err.Error())
	case domain.IsValidation(err):
		writeProblem(w, http.StatusBadRequest, "Invalid Location", err.Error())
	case errors.Is(err, domain.ErrAuthDenied), errors.As(err, &ue):
		writeProblem(w, http.StatusBadGateway, "Upstream Failure", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled pipeline error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "unexpected failure")
	}
}
