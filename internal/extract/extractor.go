package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"woningwaarde/server/internal/models"
)

// RowError marks a rejected candidate row. Reason follows the diagnostics
// convention: "field:<name>" for unparseable numerics, "date" for an
// unparseable sale date.
type RowError struct {
	Reason string
}

func (e *RowError) Error() string {
	return "row rejected: " + e.Reason
}

// Result is the outcome of extracting a candidate table: the typed rows that
// survived, plus a count and per-reason tally of the ones that did not.
// Rejected rows are counted, never silently dropped.
type Result struct {
	Accepted []models.CandidateProperty
	Rejected int
	Reasons  map[string]int
}

// Column aliases, in lookup order. The candidate table comes from external
// listing acquisition and header naming varies by source.
var (
	idColumns            = []string{"id", "listing_id", "url"}
	streetColumns        = []string{"street", "street_name", "address/street_name"}
	neighbourhoodColumns = []string{"neighbourhood", "neighborhood", "address/neighbourhood"}
	typeColumns          = []string{"type", "property_type", "dwelling_type"}
	dateColumns          = []string{"sale_date", "transport_date", "selling_date"}
	priceColumns         = []string{"sale_price", "transaction_price", "price"}
	areaColumns          = []string{"area_m2", "floor_area_m2", "floor_area", "living_area"}
	roomsColumns         = []string{"rooms", "num_rooms", "number_of_rooms"}
	bedroomsColumns      = []string{"bedrooms", "number_of_bedrooms"}
	energyColumns        = []string{"energy_label", "energielabel"}
	gardenColumns        = []string{"has_garden", "garden"}
	balconyColumns       = []string{"has_balcony", "balcony"}
	terraceColumns       = []string{"has_terrace", "terrace"}
	latitudeColumns      = []string{"latitude", "lat"}
	longitudeColumns     = []string{"longitude", "lon", "lng"}
)

// Truthy/falsy amenity tokens. Anything else maps to Unknown, which the
// scorer treats as neutral rather than as "no".
var (
	truthyTokens = map[string]bool{"ja": true, "yes": true, "true": true, "1": true, "j": true, "y": true}
	falsyTokens  = map[string]bool{"nee": true, "no": true, "false": true, "0": true, "n": true, "geen": true}
)

var dateLayouts = []string{"2006-01-02", "02-01-2006", "2-1-2006", "02/01/2006", "2006-01-02T15:04:05Z07:00"}

var nonNumeric = regexp.MustCompile(`[^\d.,\-]`)

// Extract turns raw candidate rows into typed CandidateProperty values.
// Rows violating the price > 0 / area > 0 invariant are rejected here so the
// scorer never sees them.
func Extract(rows []map[string]string) Result {
	res := Result{Reasons: make(map[string]int)}

	for i, row := range rows {
		cand, err := ExtractRow(row)
		if err != nil {
			res.Rejected++
			var rowErr *RowError
			if re, ok := err.(*RowError); ok {
				rowErr = re
			} else {
				rowErr = &RowError{Reason: "unknown"}
			}
			res.Reasons[rowErr.Reason]++
			continue
		}
		if cand.ID == "" {
			cand.ID = fmt.Sprintf("row-%d", i+1)
		}
		res.Accepted = append(res.Accepted, *cand)
	}
	return res
}

// ExtractRow parses a single raw row. The original row is kept on the
// candidate as an opaque passthrough for reporting.
func ExtractRow(row map[string]string) (*models.CandidateProperty, error) {
	price, err := positiveNumber(row, priceColumns)
	if err != nil {
		return nil, &RowError{Reason: "field:price"}
	}
	area, err := positiveNumber(row, areaColumns)
	if err != nil {
		return nil, &RowError{Reason: "field:area"}
	}

	saleDate, err := parseDate(lookup(row, dateColumns))
	if err != nil {
		return nil, &RowError{Reason: "date"}
	}

	rooms, err := optionalCount(row, roomsColumns)
	if err != nil {
		return nil, &RowError{Reason: "field:rooms"}
	}
	bedrooms, err := optionalCount(row, bedroomsColumns)
	if err != nil {
		return nil, &RowError{Reason: "field:bedrooms"}
	}

	cand := &models.CandidateProperty{
		ID:            lookup(row, idColumns),
		Street:        lookup(row, streetColumns),
		Neighbourhood: lookup(row, neighbourhoodColumns),
		DwellingType:  parseDwellingType(lookup(row, typeColumns)),
		SaleDate:      saleDate,
		SalePrice:     price,
		FloorArea:     area,
		Rooms:         rooms,
		Bedrooms:      bedrooms,
		EnergyLabel:   strings.ToUpper(strings.TrimSpace(lookup(row, energyColumns))),
		HasGarden:     ParseAmenity(lookup(row, gardenColumns)),
		HasBalcony:    ParseAmenity(lookup(row, balconyColumns)),
		HasTerrace:    ParseAmenity(lookup(row, terraceColumns)),
		Raw:           row,
	}

	if lat, ok := parseCoordinate(row, latitudeColumns); ok {
		if lon, ok := parseCoordinate(row, longitudeColumns); ok {
			cand.Latitude = &lat
			cand.Longitude = &lon
		}
	}

	return cand, nil
}

// ParseAmenity maps a textual amenity token onto the three-valued domain.
func ParseAmenity(s string) models.Presence {
	token := strings.ToLower(strings.TrimSpace(s))
	switch {
	case truthyTokens[token]:
		return models.PresenceYes
	case falsyTokens[token]:
		return models.PresenceNo
	default:
		return models.PresenceUnknown
	}
}

// ParseAmount parses a monetary or metric amount, tolerating currency symbols
// and Dutch formats like "€ 525.000,-" or "1.250.000,50".
func ParseAmount(s string) (float64, error) {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	cleaned = strings.TrimSuffix(cleaned, ",-")
	cleaned = strings.TrimSuffix(cleaned, ",")
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount %q", s)
	}

	if strings.Contains(cleaned, ",") {
		// Dutch decimal comma: dots are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else if dots := strings.Count(cleaned, "."); dots > 1 {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	} else if dots == 1 {
		// A lone dot followed by exactly three digits is a thousands
		// separator ("525.000"), otherwise a decimal point.
		idx := strings.Index(cleaned, ".")
		if len(cleaned)-idx-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	return strconv.ParseFloat(cleaned, 64)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseDwellingType(s string) models.DwellingType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "appartement", "apartment", "flat":
		return models.DwellingApartment
	case "woonhuis", "house", "huis":
		return models.DwellingHouse
	default:
		return models.DwellingType(strings.ToLower(strings.TrimSpace(s)))
	}
}

func lookup(row map[string]string, columns []string) string {
	for _, col := range columns {
		if v, ok := row[col]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// positiveNumber parses the first matching column and requires a value > 0.
func positiveNumber(row map[string]string, columns []string) (float64, error) {
	raw := lookup(row, columns)
	v, err := ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive value %v", v)
	}
	return v, nil
}

// optionalCount parses a room-style count. An absent column yields zero (the
// scorer decides what to do with it); a present but unparseable or negative
// value rejects the row.
func optionalCount(row map[string]string, columns []string) (int, error) {
	raw := lookup(row, columns)
	if raw == "" {
		return 0, nil
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative count %v", v)
	}
	return int(v), nil
}

func parseCoordinate(row map[string]string, columns []string) (float64, bool) {
	raw := strings.TrimSpace(lookup(row, columns))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
