package domain_test

import (
	"testing"

	"solar_leads/internal/domain"
)

func TestParseClassificationStatus(t *testing.T) {
	cases := map[string]domain.ClassificationStatus{
		"developed":            domain.StatusDeveloped,
		"  Developed ":         domain.StatusDeveloped,
		"partially_developed":  domain.StatusPartiallyDeveloped,
		"partially developed":  domain.StatusPartiallyDeveloped,
		"undeveloped":          domain.StatusUndeveloped,
		"vacant":               domain.StatusUndeveloped,
		"uncertain":            domain.StatusUncertain,
		"":                     domain.StatusUncertain,
		"full of solar panels": domain.StatusUncertain,
	}
	for in, want := range cases {
		if got := domain.ParseClassificationStatus(in); got != want {
			t.Errorf("ParseClassificationStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSolarPresentProjection(t *testing.T) {
	if v := domain.StatusDeveloped.SolarPresent(); v == nil || !*v {
		t.Fatalf("developed should project to true")
	}
	if v := domain.StatusUndeveloped.SolarPresent(); v == nil || *v {
		t.Fatalf("undeveloped should project to false")
	}
	if v := domain.StatusPartiallyDeveloped.SolarPresent(); v == nil || *v {
		t.Fatalf("partially developed should project to false")
	}
	if v := domain.StatusUncertain.SolarPresent(); v != nil {
		t.Fatalf("uncertain should project to nil, got %v", *v)
	}
}

func TestNewCoordinates_Validation(t *testing.T) {
	if _, err := domain.NewCoordinates(32.9466, -117.1687); err != nil {
		t.Fatalf("valid coordinates rejected: %v", err)
	}
	for _, bad := range [][2]float64{{91, 0}, {-91, 0}, {0, 181}, {0, -181}} {
		if _, err := domain.NewCoordinates(bad[0], bad[1]); err == nil {
			t.Errorf("expected error for lat=%v lng=%v", bad[0], bad[1])
		}
	}
}
