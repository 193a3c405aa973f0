package streetinfo

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/serjvanilla/go-overpass"
	"github.com/sirupsen/logrus"

	"woningwaarde/server/internal/normalize"
	"woningwaarde/server/internal/scoring"
)

const (
	DefaultEndpoint = "https://overpass-api.de/api/interpreter"
	defaultTimeout  = 30 * time.Second
	// canalRadius is how close a waterway must run to count a street as
	// canal-adjacent, in meters.
	canalRadius = 20
)

// AmsterdamBound is the default query window.
var AmsterdamBound = orb.Bound{Min: orb.Point{4.7, 52.3}, Max: orb.Point{5.0, 52.4}}

// canalTokens mark streets that are canal-side by name alone, the usual Dutch
// naming convention. Used in addition to the waterway proximity query.
var canalTokens = []string{"gracht", "singel", "kade", "kanaal", "dijk"}

var digits = regexp.MustCompile(`\d+`)

// Client resolves street names to classification profiles via the Overpass
// API, caching every profile it has fetched. Profile lookups are cache-only;
// Prefetch does the network work so scoring never blocks on HTTP.
type Client struct {
	api    overpass.Client
	logger *logrus.Logger
	bound  orb.Bound

	mu    sync.RWMutex
	cache map[string]*scoring.StreetProfile
}

func NewClient(endpoint string, timeout time.Duration, bound orb.Bound, logger *logrus.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if bound.IsEmpty() {
		bound = AmsterdamBound
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		api:    overpass.NewWithSettings(endpoint, 2, &http.Client{Timeout: timeout}),
		logger: logger,
		bound:  bound,
		cache:  make(map[string]*scoring.StreetProfile),
	}
}

// Profile implements scoring.StreetLookup. The admin-area part of the key is
// ignored: Overpass profiles describe the street itself.
func (c *Client) Profile(streetKey string) (*scoring.StreetProfile, bool) {
	name := streetName(streetKey)
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.cache[name]
	return p, ok
}

// Prefetch fetches and caches profiles for the given street names. Failures
// are logged and skipped; a street without a profile simply scores neutral.
func (c *Client) Prefetch(ctx context.Context, names []string) {
	seen := make(map[string]bool)
	for _, raw := range names {
		name := normalize.Normalize(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		c.mu.RLock()
		_, cached := c.cache[name]
		c.mu.RUnlock()
		if cached {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		profile, err := c.fetch(raw)
		if err != nil {
			c.logger.WithError(err).WithField("street", raw).Warn("Street profile fetch failed")
			continue
		}
		if profile == nil {
			continue
		}

		c.mu.Lock()
		c.cache[name] = profile
		c.mu.Unlock()
	}
}

// fetch queries Overpass for the street's ways plus any waterway running
// alongside them.
func (c *Client) fetch(name string) (*scoring.StreetProfile, error) {
	query := fmt.Sprintf(`
		[out:json][timeout:25];
		way["highway"]["name"="%s"](%s)->.street;
		(
			.street;
			way(around.street:%d)["waterway"~"^(canal|river)$"];
		);
		out body;
		>;
		out skel qt;
	`, name, c.bboxClause(), canalRadius)

	result, err := c.api.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass query for %q failed: %w", name, err)
	}
	return profileFromWays(name, waysOf(&result)), nil
}

// bboxClause renders the bound in Overpass (south,west,north,east) order.
func (c *Client) bboxClause() string {
	return fmt.Sprintf("%g,%g,%g,%g", c.bound.Min[1], c.bound.Min[0], c.bound.Max[1], c.bound.Max[0])
}

func waysOf(result *overpass.Result) []*overpass.Way {
	ways := make([]*overpass.Way, 0, len(result.Ways))
	for _, way := range result.Ways {
		ways = append(ways, way)
	}
	return ways
}

// profileFromWays folds the returned ways into one whole-street profile.
// Tags are taken from the longest highway segment; length sums all segments.
// Returns nil when no highway way matched at all.
func profileFromWays(name string, ways []*overpass.Way) *scoring.StreetProfile {
	var (
		best        *overpass.Way
		bestLength  float64
		totalLength float64
		hasWaterway bool
	)

	for _, way := range ways {
		if way.Tags["waterway"] != "" {
			hasWaterway = true
			continue
		}
		if way.Tags["highway"] == "" {
			continue
		}
		length := wayLength(way)
		totalLength += length
		if best == nil || length > bestLength {
			best = way
			bestLength = length
		}
	}
	if best == nil {
		return nil
	}

	lanes := 1
	if n, err := strconv.Atoi(strings.TrimSpace(best.Tags["lanes"])); err == nil && n > 0 {
		lanes = n
	}

	width := parseMeters(best.Tags["width"])
	if width <= 0 {
		width = estimateWidth(lanes)
	}

	speed := parseMaxSpeed(best.Tags["maxspeed"])
	if speed <= 0 {
		speed = 30 // Dutch urban default
	}

	cycleway := best.Tags["cycleway"]
	if cycleway == "" {
		cycleway = best.Tags["cycleway:both"]
	}

	return &scoring.StreetProfile{
		Name:          name,
		RoadClass:     best.Tags["highway"],
		MaxSpeed:      speed,
		Lanes:         lanes,
		Width:         width,
		Cycleway:      cycleway,
		Sidewalk:      best.Tags["sidewalk"],
		Length:        totalLength,
		CanalAdjacent: hasWaterway || canalName(name),
	}
}

func wayLength(way *overpass.Way) float64 {
	var length float64
	for i := 1; i < len(way.Nodes); i++ {
		prev, curr := way.Nodes[i-1], way.Nodes[i]
		length += geo.DistanceHaversine(
			orb.Point{prev.Lon, prev.Lat},
			orb.Point{curr.Lon, curr.Lat},
		)
	}
	return length
}

// parseMaxSpeed extracts the numeric part of an OSM maxspeed value, tolerating
// forms like "30", "30 km/h" and "NL:zone30".
func parseMaxSpeed(tag string) float64 {
	match := digits.FindString(tag)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseMeters(tag string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(tag), " m"), 64)
	if err != nil {
		return 0
	}
	return v
}

// estimateWidth approximates carriageway width when OSM carries no width tag.
func estimateWidth(lanes int) float64 {
	return float64(lanes) * 3.0
}

func canalName(name string) bool {
	lower := normalize.Normalize(name)
	for _, token := range canalTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// streetName strips the admin-area part of a composite street key.
func streetName(streetKey string) string {
	if idx := strings.Index(streetKey, "|"); idx >= 0 {
		return streetKey[:idx]
	}
	return streetKey
}
