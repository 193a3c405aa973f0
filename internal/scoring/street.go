package scoring

import "math"

// StreetProfile holds street classification metadata from an external
// street-attributes source (OSM). All fields describe the whole street, not a
// single way segment.
type StreetProfile struct {
	Name          string  `json:"name"`
	RoadClass     string  `json:"road_class"`
	MaxSpeed      float64 `json:"max_speed_kmh"`
	Lanes         int     `json:"lanes"`
	Width         float64 `json:"width_m"`
	Cycleway      string  `json:"cycleway"`
	Sidewalk      string  `json:"sidewalk"`
	Length        float64 `json:"length_m"`
	CanalAdjacent bool    `json:"canal_adjacent"`
}

// StreetLookup resolves a normalized street key to its profile. Implemented
// by the overpass-backed streetinfo client; a nil lookup (or a miss) scores
// the street-geometry component at the neutral midpoint.
type StreetLookup interface {
	Profile(streetKey string) (*StreetProfile, bool)
}

// Sub-weights and decay scales for the street-geometry subscore.
var streetProfileWeights = map[string]float64{
	"max_speed":  0.25,
	"width":      0.20,
	"road_class": 0.10,
	"lanes":      0.08,
	"cycleway":   0.12,
	"sidewalk":   0.05,
	"canal":      0.10,
	"length":     0.10,
}

const (
	speedScale  = 10.0  // km/h
	widthScale  = 1.2   // meters
	lengthScale = 150.0 // meters
)

var roadClassRank = map[string]int{
	"living_street": 0,
	"residential":   1,
	"tertiary":      2,
	"secondary":     3,
}

// ProfileSimilarity scores how alike two street profiles are, in [0,1].
func ProfileSimilarity(a, b *StreetProfile) float64 {
	scores := map[string]float64{
		"max_speed":  math.Exp(-math.Abs(a.MaxSpeed-b.MaxSpeed) / speedScale),
		"width":      math.Exp(-math.Abs(a.Width-b.Width) / widthScale),
		"road_class": roadClassSimilarity(a.RoadClass, b.RoadClass),
		"lanes":      laneSimilarity(a.Lanes, b.Lanes),
		"cycleway":   tagSimilarity(a.Cycleway, b.Cycleway, "track", "lane"),
		"sidewalk":   tagSimilarity(a.Sidewalk, b.Sidewalk, "both", "left", "right"),
		"canal":      boolSimilarity(a.CanalAdjacent, b.CanalAdjacent),
		"length":     math.Exp(-math.Abs(a.Length-b.Length) / lengthScale),
	}

	var total float64
	for component, score := range scores {
		total += streetProfileWeights[component] * score
	}
	return clamp01(total)
}

func roadClassSimilarity(a, b string) float64 {
	ra, okA := roadClassRank[a]
	rb, okB := roadClassRank[b]
	if !okA || !okB {
		return 0.5
	}
	switch abs(ra - rb) {
	case 0:
		return 1.0
	case 1:
		return 0.7
	default:
		return 0.4
	}
}

func laneSimilarity(a, b int) float64 {
	switch abs(a - b) {
	case 0:
		return 1.0
	case 1:
		return 0.7
	default:
		return 0.3
	}
}

// tagSimilarity compares enumerated OSM tag values: equal is a full match,
// values within the related set are close, presence vs absence is a strong
// mismatch and anything else is neutral.
func tagSimilarity(a, b string, related ...string) float64 {
	if a == b {
		return 1.0
	}
	if inSet(a, related) && inSet(b, related) {
		return 0.7
	}
	aNone := a == "" || a == "none" || a == "no"
	bNone := b == "" || b == "none" || b == "no"
	if aNone != bNone {
		return 0.2
	}
	return 0.5
}

func boolSimilarity(a, b bool) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

func inSet(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
