package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"woningwaarde/server/config"
	"woningwaarde/server/internal/api"
	"woningwaarde/server/internal/database"
	"woningwaarde/server/internal/engine"
	"woningwaarde/server/internal/processor"
	"woningwaarde/server/internal/queue"
	"woningwaarde/server/internal/scheduler"
	"woningwaarde/server/internal/scoring"
	"woningwaarde/server/internal/streetinfo"
	"woningwaarde/server/internal/valuation"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	weights := scoring.DefaultWeights()
	if cfg.Scoring.WeightsPath != "" {
		weights, err = scoring.LoadWeights(cfg.Scoring.WeightsPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load scoring weights")
		}
		logger.Infof("Loaded scoring weights from %s", cfg.Scoring.WeightsPath)
	}

	var lookup scoring.StreetLookup
	var streets *streetinfo.Client
	if cfg.Overpass.Enabled {
		bound, err := cfg.OverpassBound()
		if err != nil {
			logger.WithError(err).Fatal("Invalid Overpass bounding box")
		}
		streets = streetinfo.NewClient(
			cfg.Overpass.Endpoint,
			time.Duration(cfg.Overpass.TimeoutSeconds)*time.Second,
			bound,
			logger,
		)
		lookup = streets
	}

	scorer, err := scoring.NewScorer(weights, lookup, scoring.Params{
		AreaCutoff:          cfg.Scoring.AreaCutoff,
		MaxRoomDiff:         cfg.Scoring.MaxRoomDiff,
		MaxBedroomDiff:      cfg.Scoring.MaxBedroomDiff,
		LocationDecayMeters: cfg.Scoring.LocationDecayMeters,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build scorer")
	}

	eng := engine.NewEngine(scorer, logger, engine.Options{
		Workers:       cfg.Scoring.WorkerCount,
		RecencyMonths: cfg.Selection.RecencyMonths,
		SizeBand:      cfg.Selection.SizeBand,
		OutlierFilter: cfg.Selection.OutlierFilter,
		IQRMultiplier: cfg.Selection.IQRMultiplier,
		TopN:          cfg.Selection.TopN,
		Valuation: valuation.Options{
			Method:  valuation.Method(cfg.Valuation.Method),
			TopK:    cfg.Valuation.TopK,
			BandPct: cfg.Valuation.BandPct,
		},
	})

	rowQueue := queue.NewRowQueue(cfg.BatchProcessing.QueueSize, logger)
	batchProcessor := processor.NewBatchProcessor(db, rowQueue, cfg, logger)
	batchProcessor.Start()
	rowQueue.Start()
	defer func() {
		rowQueue.Close()
		batchProcessor.Stop()
	}()

	if streets != nil {
		refresh := scheduler.NewScheduler(db, streets, time.Duration(cfg.Overpass.RefreshMinutes)*time.Minute, logger)
		refresh.Start()
		defer refresh.Stop()
	}

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	handler := api.NewHandler(db, eng, streets, rowQueue, cfg.BatchProcessing.MaxBatchSize, logger)
	api.SetupRoutes(router, handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
