package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woningwaarde/server/internal/models"
)

func testSubject() models.SubjectProperty {
	return models.SubjectProperty{
		ValuationDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		LivingArea:    100,
		DwellingType:  models.DwellingApartment,
		Street:        "Elandsgracht",
		Neighbourhood: "Jordaan",
		Rooms:         3,
		Bedrooms:      2,
		EnergyLabel:   "B",
		HasGarden:     models.PresenceNo,
		HasBalcony:    models.PresenceNo,
		HasTerrace:    models.PresenceNo,
	}
}

// identicalCandidate mirrors every scored attribute of the subject.
func identicalCandidate() models.CandidateProperty {
	return models.CandidateProperty{
		ID:            "c1",
		Street:        "Elandsgracht",
		Neighbourhood: "Jordaan",
		DwellingType:  models.DwellingApartment,
		SaleDate:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		SalePrice:     650000,
		FloorArea:     100,
		Rooms:         3,
		Bedrooms:      2,
		EnergyLabel:   "B",
		HasGarden:     models.PresenceNo,
		HasBalcony:    models.PresenceNo,
		HasTerrace:    models.PresenceNo,
	}
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), nil, DefaultParams())
	require.NoError(t, err)
	return s
}

func TestIdenticalPairScoresOne(t *testing.T) {
	s := newTestScorer(t)

	scored, err := s.Score(testSubject(), identicalCandidate())
	require.NoError(t, err)

	for _, component := range Components {
		if component == ComponentStreetGeometry {
			// No lookup configured: neutral midpoint, not a perfect match.
			assert.Equal(t, 0.5, scored.Subscores[component])
			continue
		}
		assert.Equal(t, 1.0, scored.Subscores[component], "subscore %s", component)
	}
}

func TestIdenticalPairWithLookupScoresExactlyOne(t *testing.T) {
	profile := &StreetProfile{RoadClass: "residential", MaxSpeed: 30, Lanes: 1, Width: 3, Length: 200}
	lookup := staticLookup{"elandsgracht|jordaan": profile}

	s, err := NewScorer(DefaultWeights(), lookup, DefaultParams())
	require.NoError(t, err)

	scored, err := s.Score(testSubject(), identicalCandidate())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scored.Composite, 1e-9)
}

func TestSubscoresWithinUnitInterval(t *testing.T) {
	s := newTestScorer(t)

	cand := identicalCandidate()
	cand.Street = "Overtoom"
	cand.Neighbourhood = "Oud-West"
	cand.FloorArea = 240
	cand.Rooms = 9
	cand.Bedrooms = 7
	cand.EnergyLabel = "G"
	cand.HasGarden = models.PresenceYes

	scored, err := s.Score(testSubject(), cand)
	require.NoError(t, err)

	for component, score := range scored.Subscores {
		assert.GreaterOrEqual(t, score, 0.0, "subscore %s", component)
		assert.LessOrEqual(t, score, 1.0, "subscore %s", component)
	}
	assert.GreaterOrEqual(t, scored.Composite, 0.0)
	assert.LessOrEqual(t, scored.Composite, 1.0)
}

func TestAreaScore(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name     string
		area     float64
		expected float64
	}{
		{"Exact match", 100, 1.0},
		{"Ten percent off", 110, 0.8},
		{"At cutoff", 150, 0.0},
		{"Beyond cutoff floors at zero", 300, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := identicalCandidate()
			cand.FloorArea = tt.area

			scored, err := s.Score(testSubject(), cand)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, scored.Subscores[ComponentArea], 1e-9)
		})
	}
}

func TestGardenNeutralAndMismatch(t *testing.T) {
	s := newTestScorer(t)

	t.Run("Unknown garden is neutral", func(t *testing.T) {
		cand := identicalCandidate()
		cand.HasGarden = models.PresenceUnknown

		scored, err := s.Score(testSubject(), cand)
		require.NoError(t, err)
		assert.Equal(t, 0.5, scored.Subscores[ComponentGarden])
	})

	t.Run("Known mismatch scores zero", func(t *testing.T) {
		cand := identicalCandidate()
		cand.HasGarden = models.PresenceYes

		scored, err := s.Score(testSubject(), cand)
		require.NoError(t, err)
		assert.Equal(t, 0.0, scored.Subscores[ComponentGarden])
	})
}

func TestBalconyTerraceCombined(t *testing.T) {
	s := newTestScorer(t)

	// Subject has neither; a candidate with only a terrace still mismatches
	// on the combined flag.
	cand := identicalCandidate()
	cand.HasTerrace = models.PresenceYes

	scored, err := s.Score(testSubject(), cand)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scored.Subscores[ComponentBalconyTerrace])
}

func TestRoomCountSaturation(t *testing.T) {
	s := newTestScorer(t)

	cand := identicalCandidate()
	cand.Rooms = 8 // five rooms apart, beyond the max difference of 3

	scored, err := s.Score(testSubject(), cand)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scored.Subscores[ComponentRooms])
}

func TestEnergyLabelDistance(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name     string
		label    string
		expected float64
	}{
		{"Same label", "B", 1.0},
		{"One step", "C", 0.9},
		{"Unknown label is neutral", "onbekend", 0.5},
		{"Empty label is neutral", "", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := identicalCandidate()
			cand.EnergyLabel = tt.label

			scored, err := s.Score(testSubject(), cand)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, scored.Subscores[ComponentEnergyLabel], 1e-9)
		})
	}
}

func TestMissingRequiredInputExcludes(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name      string
		mutate    func(*models.CandidateProperty)
		component string
	}{
		{
			name:      "No street",
			mutate:    func(c *models.CandidateProperty) { c.Street = "" },
			component: ComponentStreetName,
		},
		{
			name:      "No rooms",
			mutate:    func(c *models.CandidateProperty) { c.Rooms = 0 },
			component: ComponentRooms,
		},
		{
			name:      "No bedrooms",
			mutate:    func(c *models.CandidateProperty) { c.Bedrooms = 0 },
			component: ComponentBedrooms,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := identicalCandidate()
			tt.mutate(&cand)

			_, err := s.Score(testSubject(), cand)
			require.Error(t, err)
			missing, ok := err.(*MissingInputError)
			require.True(t, ok)
			assert.Equal(t, tt.component, missing.Component)
		})
	}
}

func TestLocationCoordinateDecay(t *testing.T) {
	s := newTestScorer(t)

	subject := testSubject()
	subject.Neighbourhood = "Jordaan"
	lat, lon := 52.3702, 4.8952
	subject.Latitude, subject.Longitude = &lat, &lon

	cand := identicalCandidate()
	cand.Neighbourhood = "De Pijp"
	candLat, candLon := 52.3547, 4.8920
	cand.Latitude, cand.Longitude = &candLat, &candLon

	scored, err := s.Score(subject, cand)
	require.NoError(t, err)

	loc := scored.Subscores[ComponentLocation]
	assert.Greater(t, loc, 0.0)
	assert.Less(t, loc, 1.0)
}

func TestStreetGeometryNeutralWithoutLookup(t *testing.T) {
	s := newTestScorer(t)

	cand := identicalCandidate()
	scored, err := s.Score(testSubject(), cand)
	require.NoError(t, err)
	assert.Equal(t, 0.5, scored.Subscores[ComponentStreetGeometry])
}

func TestProfileSimilarity(t *testing.T) {
	a := &StreetProfile{RoadClass: "residential", MaxSpeed: 30, Lanes: 1, Width: 3.5, Cycleway: "none", Sidewalk: "both", Length: 300, CanalAdjacent: true}

	t.Run("Identical profiles", func(t *testing.T) {
		assert.InDelta(t, 1.0, ProfileSimilarity(a, a), 1e-9)
	})

	t.Run("Different profiles score lower", func(t *testing.T) {
		b := &StreetProfile{RoadClass: "secondary", MaxSpeed: 70, Lanes: 4, Width: 14, Cycleway: "track", Sidewalk: "none", Length: 2000, CanalAdjacent: false}
		sim := ProfileSimilarity(a, b)
		assert.Greater(t, sim, 0.0)
		assert.Less(t, sim, 0.5)
	})
}

// staticLookup is a fixed street-profile source for tests.
type staticLookup map[string]*StreetProfile

func (l staticLookup) Profile(key string) (*StreetProfile, bool) {
	p, ok := l[key]
	return p, ok
}
