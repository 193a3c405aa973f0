package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/paulmach/orb"
)

type Config struct {
	Server struct {
		Port int `env:"SERVER_PORT" envDefault:"5250"`

		// Origins allowed by the CORS middleware
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Database struct {
		Path string `env:"DATABASE_PATH" envDefault:"database/woningwaarde.db"`
	}

	Scoring struct {
		// Optional JSON file overriding the built-in component weights
		WeightsPath string `env:"SCORING_WEIGHTS_PATH"`

		// Number of concurrent scoring workers per run
		WorkerCount int `env:"SCORING_WORKER_COUNT" envDefault:"4"`

		// Proportional area difference at which the area subscore reaches zero
		AreaCutoff float64 `env:"SCORING_AREA_CUTOFF" envDefault:"0.5"`

		MaxRoomDiff    int `env:"SCORING_MAX_ROOM_DIFF" envDefault:"3"`
		MaxBedroomDiff int `env:"SCORING_MAX_BEDROOM_DIFF" envDefault:"3"`

		// Distance decay scale for the location subscore, in meters
		LocationDecayMeters float64 `env:"SCORING_LOCATION_DECAY_M" envDefault:"750"`
	}

	Selection struct {
		TopN          int     `env:"SELECTION_TOP_N" envDefault:"15"`
		RecencyMonths int     `env:"SELECTION_RECENCY_MONTHS" envDefault:"12"`
		SizeBand      float64 `env:"SELECTION_SIZE_BAND" envDefault:"0"`
		OutlierFilter bool    `env:"SELECTION_OUTLIER_FILTER" envDefault:"true"`
		IQRMultiplier float64 `env:"SELECTION_IQR_MULTIPLIER" envDefault:"1.5"`
	}

	Valuation struct {
		// "mean" or "median"
		Method  string  `env:"VALUATION_METHOD" envDefault:"mean"`
		TopK    int     `env:"VALUATION_TOP_K" envDefault:"10"`
		BandPct float64 `env:"VALUATION_BAND_PCT" envDefault:"0.10"`
	}

	Overpass struct {
		// Street-profile enrichment is off by default; runs score the
		// street-geometry component neutrally without it
		Enabled        bool   `env:"OVERPASS_ENABLED" envDefault:"false"`
		Endpoint       string `env:"OVERPASS_ENDPOINT" envDefault:"https://overpass-api.de/api/interpreter"`
		TimeoutSeconds int    `env:"OVERPASS_TIMEOUT" envDefault:"30"`
		RefreshMinutes int    `env:"OVERPASS_REFRESH_MINUTES" envDefault:"60"`

		// Query window as "west,south,east,north"
		BBox string `env:"OVERPASS_BBOX" envDefault:"4.7,52.3,5.0,52.4"`
	}

	BatchProcessing struct {
		// Maximum rows per persisted batch
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"200"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`

		// Buffered batches before imports are rejected
		QueueSize int `env:"BATCH_QUEUE_SIZE" envDefault:"100"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OverpassBound parses the configured bounding box.
func (c *Config) OverpassBound() (orb.Bound, error) {
	parts := strings.Split(c.Overpass.BBox, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must be west,south,east,north, got %q", c.Overpass.BBox)
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bad bbox component %q: %w", part, err)
		}
		vals[i] = v
	}
	return orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}, nil
}
