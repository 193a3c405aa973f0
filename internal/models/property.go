package models

import (
	"strings"
	"time"
)

// Presence is a three-valued amenity flag. Source data frequently omits
// garden/balcony information, and an absent value must not be scored as "no":
// it stays Unknown and the scorer treats it as neutral.
type Presence int8

const (
	PresenceUnknown Presence = iota
	PresenceNo
	PresenceYes
)

func (p Presence) String() string {
	switch p {
	case PresenceYes:
		return "yes"
	case PresenceNo:
		return "no"
	default:
		return "unknown"
	}
}

// Known reports whether the flag carries actual information.
func (p Presence) Known() bool {
	return p == PresenceYes || p == PresenceNo
}

func PresenceFromBool(b bool) Presence {
	if b {
		return PresenceYes
	}
	return PresenceNo
}

// MarshalJSON renders Unknown as null so absence stays visible in output.
func (p Presence) MarshalJSON() ([]byte, error) {
	switch p {
	case PresenceYes:
		return []byte("true"), nil
	case PresenceNo:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts booleans, null and the usual textual tokens;
// anything unrecognized stays Unknown rather than failing the document.
func (p *Presence) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "true", "yes", "ja", "1", "y", "j":
		*p = PresenceYes
	case "false", "no", "nee", "0", "n", "geen":
		*p = PresenceNo
	default:
		*p = PresenceUnknown
	}
	return nil
}

type DwellingType string

const (
	DwellingApartment DwellingType = "apartment"
	DwellingHouse     DwellingType = "house"
)

// SubjectProperty is the reference property under valuation. It is built once
// per request and not mutated during a run.
type SubjectProperty struct {
	ValuationDate  time.Time    `json:"valuation_date"`
	LivingArea     float64      `json:"living_area_m2"`
	DwellingType   DwellingType `json:"dwelling_type"`
	Subtype        string       `json:"subtype,omitempty"`
	Street         string       `json:"street"`
	Neighbourhood  string       `json:"neighbourhood"`
	Latitude       *float64     `json:"latitude,omitempty"`
	Longitude      *float64     `json:"longitude,omitempty"`
	Rooms          int          `json:"rooms"`
	Bedrooms       int          `json:"bedrooms"`
	Bathrooms      int          `json:"bathrooms"`
	EnergyLabel    string       `json:"energy_label"`
	HasGarden      Presence     `json:"has_garden"`
	HasBalcony     Presence     `json:"has_balcony"`
	HasTerrace     Presence     `json:"has_terrace"`
	SunOrientation string       `json:"sun_orientation,omitempty"`
}

// CandidateProperty is one sold or listed property considered as a comparable.
// Price and floor area are guaranteed positive by the extractor; rows failing
// that never reach the scorer.
type CandidateProperty struct {
	ID            string            `json:"id"`
	Street        string            `json:"street"`
	Neighbourhood string            `json:"neighbourhood"`
	DwellingType  DwellingType      `json:"dwelling_type"`
	SaleDate      time.Time         `json:"sale_date"`
	SalePrice     float64           `json:"sale_price"`
	FloorArea     float64           `json:"floor_area_m2"`
	Rooms         int               `json:"rooms"`
	Bedrooms      int               `json:"bedrooms"`
	EnergyLabel   string            `json:"energy_label"`
	HasGarden     Presence          `json:"has_garden"`
	HasBalcony    Presence          `json:"has_balcony"`
	HasTerrace    Presence          `json:"has_terrace"`
	Latitude      *float64          `json:"latitude,omitempty"`
	Longitude     *float64          `json:"longitude,omitempty"`
	Raw           map[string]string `json:"-"`
}

// PricePerArea is the primary unit for valuation aggregation.
func (c *CandidateProperty) PricePerArea() float64 {
	if c.FloorArea <= 0 {
		return 0
	}
	return c.SalePrice / c.FloorArea
}

// ScoredCandidate wraps a candidate with its similarity subscores (keyed by
// scoring component, each in [0,1]) and the weighted composite score.
type ScoredCandidate struct {
	Candidate CandidateProperty  `json:"candidate"`
	Subscores map[string]float64 `json:"subscores"`
	Composite float64            `json:"composite_score"`
}
