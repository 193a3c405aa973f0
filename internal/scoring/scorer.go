package scoring

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"woningwaarde/server/internal/models"
	"woningwaarde/server/internal/normalize"
)

// neutralScore is assigned when one side of a binary comparison is unknown:
// the candidate is neither rewarded nor penalized for missing data.
const neutralScore = 0.5

// Dutch energy-label ladder, best to worst. Ordinal distance over this ladder
// drives the energy subscore.
var energyLabels = []string{"A++++", "A+++", "A++", "A+", "A", "B", "C", "D", "E", "F", "G"}

// MissingInputError reports that a subscore's required input is absent and no
// neutral default is defined for it. The candidate is excluded from the pool,
// not scored as zero.
type MissingInputError struct {
	Component string
}

func (e *MissingInputError) Error() string {
	return "missing input for subscore " + e.Component
}

// Params are the tunable shapes of the decreasing subscore functions.
type Params struct {
	// AreaCutoff is the proportional area difference at which the area
	// subscore floors at 0.
	AreaCutoff float64
	// MaxRoomDiff / MaxBedroomDiff saturate the count subscores.
	MaxRoomDiff    int
	MaxBedroomDiff int
	// LocationDecayMeters is the haversine-distance e-folding scale for the
	// location subscore when both sides carry coordinates.
	LocationDecayMeters float64
}

func DefaultParams() Params {
	return Params{
		AreaCutoff:          0.50,
		MaxRoomDiff:         3,
		MaxBedroomDiff:      3,
		LocationDecayMeters: 750,
	}
}

// Scorer computes the nine similarity subscores for one subject/candidate
// pair and combines them via the configured weights. Score is pure and
// pairwise: it never consults the pool, so candidates can be scored
// concurrently without shared state.
type Scorer struct {
	weights WeightConfiguration
	lookup  StreetLookup
	params  Params
}

// NewScorer validates the weight configuration up front; a run must not
// start with weights that do not sum to 1.0.
func NewScorer(weights WeightConfiguration, lookup StreetLookup, params Params) (*Scorer, error) {
	if weights == nil {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if params.AreaCutoff <= 0 {
		params.AreaCutoff = DefaultParams().AreaCutoff
	}
	if params.MaxRoomDiff <= 0 {
		params.MaxRoomDiff = DefaultParams().MaxRoomDiff
	}
	if params.MaxBedroomDiff <= 0 {
		params.MaxBedroomDiff = DefaultParams().MaxBedroomDiff
	}
	if params.LocationDecayMeters <= 0 {
		params.LocationDecayMeters = DefaultParams().LocationDecayMeters
	}
	return &Scorer{weights: weights, lookup: lookup, params: params}, nil
}

// Weights returns the configuration the scorer was built with.
func (s *Scorer) Weights() WeightConfiguration {
	return s.weights
}

// Score computes all nine subscores and the weighted composite for the pair.
// A MissingInputError means the candidate must be excluded, with the reason
// recorded in run diagnostics.
func (s *Scorer) Score(subject models.SubjectProperty, cand models.CandidateProperty) (models.ScoredCandidate, error) {
	subscores := make(map[string]float64, len(Components))

	streetName, err := s.streetNameScore(subject, cand)
	if err != nil {
		return models.ScoredCandidate{}, err
	}
	subscores[ComponentStreetName] = streetName
	subscores[ComponentStreetGeometry] = s.streetGeometryScore(subject, cand)

	area, err := s.areaScore(subject, cand)
	if err != nil {
		return models.ScoredCandidate{}, err
	}
	subscores[ComponentArea] = area
	subscores[ComponentLocation] = s.locationScore(subject, cand)
	subscores[ComponentGarden] = presenceMatch(subject.HasGarden, cand.HasGarden)

	rooms, err := countScore(ComponentRooms, subject.Rooms, cand.Rooms, s.params.MaxRoomDiff)
	if err != nil {
		return models.ScoredCandidate{}, err
	}
	subscores[ComponentRooms] = rooms

	bedrooms, err := countScore(ComponentBedrooms, subject.Bedrooms, cand.Bedrooms, s.params.MaxBedroomDiff)
	if err != nil {
		return models.ScoredCandidate{}, err
	}
	subscores[ComponentBedrooms] = bedrooms

	subscores[ComponentBalconyTerrace] = presenceMatch(
		combinedOutdoor(subject.HasBalcony, subject.HasTerrace),
		combinedOutdoor(cand.HasBalcony, cand.HasTerrace),
	)
	subscores[ComponentEnergyLabel] = energyScore(subject.EnergyLabel, cand.EnergyLabel)

	// Sum in canonical component order: float addition is non-associative
	// and ranging over the map would make the composite nondeterministic.
	var composite float64
	for _, component := range Components {
		composite += s.weights[component] * subscores[component]
	}

	return models.ScoredCandidate{
		Candidate: cand,
		Subscores: subscores,
		Composite: clamp01(composite),
	}, nil
}

// streetNameScore compares normalized street keys; street identity is a
// required input with no neutral default.
func (s *Scorer) streetNameScore(subject models.SubjectProperty, cand models.CandidateProperty) (float64, error) {
	subjKey := normalize.Normalize(subject.Street)
	candKey := normalize.Normalize(cand.Street)
	if subjKey == "" || candKey == "" {
		return 0, &MissingInputError{Component: ComponentStreetName}
	}
	if normalize.StreetKey(subject.Street, subject.Neighbourhood) == normalize.StreetKey(cand.Street, cand.Neighbourhood) {
		return 1, nil
	}
	return normalize.Similarity(subject.Street, cand.Street), nil
}

// streetGeometryScore compares street classification profiles. Absent data
// on either side scores the neutral midpoint.
func (s *Scorer) streetGeometryScore(subject models.SubjectProperty, cand models.CandidateProperty) float64 {
	if s.lookup == nil {
		return neutralScore
	}
	subjProfile, ok := s.lookup.Profile(normalize.StreetKey(subject.Street, subject.Neighbourhood))
	if !ok {
		return neutralScore
	}
	candProfile, ok := s.lookup.Profile(normalize.StreetKey(cand.Street, cand.Neighbourhood))
	if !ok {
		return neutralScore
	}
	return ProfileSimilarity(subjProfile, candProfile)
}

func (s *Scorer) areaScore(subject models.SubjectProperty, cand models.CandidateProperty) (float64, error) {
	if subject.LivingArea <= 0 || cand.FloorArea <= 0 {
		return 0, &MissingInputError{Component: ComponentArea}
	}
	ratio := math.Abs(cand.FloorArea-subject.LivingArea) / subject.LivingArea
	return clamp01(1 - ratio/s.params.AreaCutoff), nil
}

// locationScore: same neighbourhood is a perfect match; with coordinates on
// both sides the score decays with haversine distance; otherwise it falls
// back to neighbourhood-name similarity.
func (s *Scorer) locationScore(subject models.SubjectProperty, cand models.CandidateProperty) float64 {
	subjHood := normalize.Normalize(subject.Neighbourhood)
	candHood := normalize.Normalize(cand.Neighbourhood)
	if subjHood != "" && subjHood == candHood {
		return 1
	}

	if subject.Latitude != nil && subject.Longitude != nil && cand.Latitude != nil && cand.Longitude != nil {
		dist := geo.DistanceHaversine(
			orb.Point{*subject.Longitude, *subject.Latitude},
			orb.Point{*cand.Longitude, *cand.Latitude},
		)
		return math.Exp(-dist / s.params.LocationDecayMeters)
	}

	if subjHood != "" && candHood != "" {
		return normalize.Similarity(subject.Neighbourhood, cand.Neighbourhood)
	}
	return neutralScore
}

func countScore(component string, subjCount, candCount, maxDiff int) (float64, error) {
	if subjCount <= 0 || candCount <= 0 {
		return 0, &MissingInputError{Component: component}
	}
	diff := abs(subjCount - candCount)
	return clamp01(1 - float64(diff)/float64(maxDiff)), nil
}

// presenceMatch is the binary-with-neutral rule: identical known values score
// 1, differing known values score 0, unknown on either side scores 0.5.
func presenceMatch(a, b models.Presence) float64 {
	if !a.Known() || !b.Known() {
		return neutralScore
	}
	if a == b {
		return 1
	}
	return 0
}

// combinedOutdoor folds balcony and terrace into one flag: yes if either is
// present, no only when both are known absent.
func combinedOutdoor(balcony, terrace models.Presence) models.Presence {
	if balcony == models.PresenceYes || terrace == models.PresenceYes {
		return models.PresenceYes
	}
	if balcony == models.PresenceNo && terrace == models.PresenceNo {
		return models.PresenceNo
	}
	return models.PresenceUnknown
}

func energyScore(subjLabel, candLabel string) float64 {
	subjIdx, okS := energyOrdinal(subjLabel)
	candIdx, okC := energyOrdinal(candLabel)
	if !okS || !okC {
		return neutralScore
	}
	diff := abs(subjIdx - candIdx)
	return clamp01(1 - float64(diff)/float64(len(energyLabels)-1))
}

func energyOrdinal(label string) (int, bool) {
	for i, l := range energyLabels {
		if l == label {
			return i, true
		}
	}
	return 0, false
}
