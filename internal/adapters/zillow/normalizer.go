// internal/adapters/zillow/normalizer.go
package zillow

import (
	"encoding/json"
	"strconv"
	"strings"

	"solar_leads/internal/domain"
)

// PayloadNormalizer maps one provider response shape onto PropertyRecords.
// Normalize reports false when the payload is not the shape it understands,
// so the client can try the next strategy. Upstream schema drift is handled
// by adding a strategy, not by branching inside the client.
type PayloadNormalizer interface {
	Name() string
	Normalize(raw []byte) ([]domain.PropertyRecord, bool)
}

/********** alias registry (single source of truth) **********/

var propertyAliases = map[string][]string{
	"address": {"address", "streetAddress", "address.streetAddress"},
	"lat":     {"latitude", "lat", "location.latitude", "latLong.latitude"},
	"lng":     {"longitude", "lng", "location.longitude", "latLong.longitude"},
	"id":      {"zpid", "id", "propertyId"},
	"price":   {"price", "unformattedPrice", "price.value", "listPrice"},
	"beds":    {"bedrooms", "beds"},
	"baths":   {"bathrooms", "baths"},
	"area":    {"livingArea", "livingAreaValue", "area"},
	"lot":     {"lotAreaValue", "lotSize", "hdpData.homeInfo.lotAreaValue"},
	"lotUnit": {"lotAreaUnit", "hdpData.homeInfo.lotAreaUnit"},
}

const sqftPerAcre = 43_560

/********** strategies **********/

// flatNormalizer handles the common shape: a top-level "props" (or legacy
// "results") array of listing objects.
type flatNormalizer struct{}

func (flatNormalizer) Name() string { return "flat" }

func (flatNormalizer) Normalize(raw []byte) ([]domain.PropertyRecord, bool) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, false
	}
	for _, key := range []string{"props", "results"} {
		v, present := root[key]
		if !present {
			continue
		}
		items, _ := v.([]any) // null -> empty page, still this shape
		out := make([]domain.PropertyRecord, 0, len(items))
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				out = append(out, itemToRecord(m))
			}
		}
		return out, true
	}
	return nil, false
}

// groupedNormalizer handles keyed pagination groups where every item nests
// the listing under a per-item "property" object, e.g.
// {"cat1":{"searchResults":[{"property":{...}},...]},"cat2":{...}}.
type groupedNormalizer struct{}

func (groupedNormalizer) Name() string { return "grouped" }

func (groupedNormalizer) Normalize(raw []byte) ([]domain.PropertyRecord, bool) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, false
	}
	var out []domain.PropertyRecord
	claimed := false
	for _, group := range root {
		gm, ok := group.(map[string]any)
		if !ok {
			continue
		}
		for _, v := range gm {
			items, ok := v.([]any)
			if !ok {
				continue
			}
			for _, it := range items {
				im, ok := it.(map[string]any)
				if !ok {
					continue
				}
				prop, ok := im["property"].(map[string]any)
				if !ok {
					continue
				}
				claimed = true
				out = append(out, itemToRecord(prop))
			}
		}
	}
	return out, claimed
}

/********** field mapping **********/

func itemToRecord(m map[string]any) domain.PropertyRecord {
	rec := domain.PropertyRecord{
		Address:    aliasString(m, "address"),
		ExternalID: aliasString(m, "id"),
		Price:      aliasFloat(m, "price"),
		Beds:       aliasFloat(m, "beds"),
		Baths:      aliasFloat(m, "baths"),
		LivingArea: aliasFloat(m, "area"),
		LotSize:    lotSizeSqft(m),
	}
	lat, lng := aliasFloat(m, "lat"), aliasFloat(m, "lng")
	if lat != nil && lng != nil {
		if c, err := domain.NewCoordinates(*lat, *lng); err == nil {
			rec.Coords = &c
		}
	}
	return rec
}

// lotSizeSqft converts acre-denominated lot areas to square feet so the
// scorer sees one unit regardless of what the provider sent.
func lotSizeSqft(m map[string]any) *float64 {
	v := aliasFloat(m, "lot")
	if v == nil {
		return nil
	}
	if unit := aliasString(m, "lotUnit"); unit != nil && strings.Contains(strings.ToLower(*unit), "acre") {
		sqft := *v * sqftPerAcre
		return &sqft
	}
	return v
}

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// aliasString returns the first alias that yields a non-empty string; numeric
// identifiers (zpid is sometimes a number) are rendered in their textual form.
func aliasString(m map[string]any, key string) *string {
	for _, p := range propertyAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return &s
			}
		case float64:
			s := strconv.FormatFloat(v, 'f', -1, 64)
			return &s
		}
	}
	return nil
}

// aliasFloat returns the first alias that parses as a number. Prices arrive
// both as numbers and as display strings like "$1,250,000".
func aliasFloat(m map[string]any, key string) *float64 {
	for _, p := range propertyAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			f := v
			return &f
		case string:
			s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}
