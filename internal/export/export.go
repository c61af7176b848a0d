// Package export flattens ranked leads into CSV and XLSX files. Columns are
// fixed and ordered for spreadsheet ingestion; missing optional fields emit
// blank cells, never missing columns.
package export

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"solar_leads/internal/domain"
)

var columns = []string{
	"address", "lat", "lng", "zpid", "price", "beds", "baths",
	"livingArea", "lotSize", "image_url", "backyard_status",
	"backyard_confidence", "notes", "lead_score",
}

// Payload carries an inline attachment for embedding in a JSON response.
type Payload struct {
	Filename string `json:"filename"`
	Base64   string `json:"base64"`
}

// Filename derives an attachment name from the searched location.
func Filename(location, ext string) string {
	return "leads-" + strings.ReplaceAll(location, " ", "_") + ext
}

func ToCSV(leads []domain.LeadRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, l := range leads {
		if err := w.Write(csvRow(l)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ToXLSX(leads []domain.LeadRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leads"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, l := range leads {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := xlsxRow(l)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ToCSVBase64(leads []domain.LeadRecord, filename string) (*Payload, error) {
	b, err := ToCSV(leads)
	if err != nil {
		return nil, err
	}
	return &Payload{Filename: filename, Base64: base64.StdEncoding.EncodeToString(b)}, nil
}

func ToXLSXBase64(leads []domain.LeadRecord, filename string) (*Payload, error) {
	b, err := ToXLSX(leads)
	if err != nil {
		return nil, err
	}
	return &Payload{Filename: filename, Base64: base64.StdEncoding.EncodeToString(b)}, nil
}

func csvRow(l domain.LeadRecord) []string {
	lat, lng := coordCells(l.Property.Coords)
	return []string{
		strDeref(l.Property.Address),
		floatDeref(lat),
		floatDeref(lng),
		strDeref(l.Property.ExternalID),
		floatDeref(l.Property.Price),
		floatDeref(l.Property.Beds),
		floatDeref(l.Property.Baths),
		floatDeref(l.Property.LivingArea),
		floatDeref(l.Property.LotSize),
		l.Imagery.URL,
		string(l.Classification.Status),
		floatDeref(l.Classification.Confidence),
		strDeref(l.Classification.Notes),
		fmt.Sprintf("%.4f", l.Score),
	}
}

// xlsxRow keeps numeric cells numeric; nil pointers become empty cells.
func xlsxRow(l domain.LeadRecord) []any {
	lat, lng := coordCells(l.Property.Coords)
	return []any{
		strCell(l.Property.Address),
		floatCell(lat),
		floatCell(lng),
		strCell(l.Property.ExternalID),
		floatCell(l.Property.Price),
		floatCell(l.Property.Beds),
		floatCell(l.Property.Baths),
		floatCell(l.Property.LivingArea),
		floatCell(l.Property.LotSize),
		l.Imagery.URL,
		string(l.Classification.Status),
		floatCell(l.Classification.Confidence),
		strCell(l.Classification.Notes),
		l.Score,
	}
}

func coordCells(c *domain.Coordinates) (lat, lng *float64) {
	if c == nil {
		return nil, nil
	}
	return &c.Lat, &c.Lng
}

func strDeref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func floatDeref(p *float64) string {
	if p == nil {
		return ""
	}
	return formatFloat(*p)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func strCell(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatCell(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
