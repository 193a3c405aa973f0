package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"woningwaarde/server/internal/database"
	"woningwaarde/server/internal/extract"
	"woningwaarde/server/internal/streetinfo"
)

// Scheduler periodically refreshes street profiles for every street that
// appears in the stored candidate sources, so valuation runs find warm
// caches instead of hitting the Overpass API inline.
type Scheduler struct {
	db       *database.Database
	streets  *streetinfo.Client
	logger   *logrus.Logger
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex // Ensures sequential refresh runs
}

func NewScheduler(db *database.Database, streets *streetinfo.Client, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return &Scheduler{
		db:       db,
		streets:  streets,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduled refresh runs.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Warm the cache once at startup, tracked so Stop waits for it.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refresh()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh prefetches profiles for all streets across stored sources.
func (s *Scheduler) refresh() {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	names, err := s.streetNames()
	if err != nil {
		s.logger.WithError(err).Error("Street refresh failed to list streets")
		return
	}
	if len(names) == 0 {
		s.logger.Debug("No stored streets to refresh")
		return
	}

	s.logger.WithField("streets", len(names)).Info("Starting street profile refresh")
	s.streets.Prefetch(ctx, names)
	s.logger.Info("Completed street profile refresh")
}

// streetNames collects the distinct street names of every stored source.
func (s *Scheduler) streetNames() ([]string, error) {
	sources, err := s.db.Sources()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, source := range sources {
		rows, err := s.db.GetCandidateRows(source)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			cand, err := extract.ExtractRow(row)
			if err != nil || cand.Street == "" {
				continue
			}
			if !seen[cand.Street] {
				seen[cand.Street] = true
				names = append(names, cand.Street)
			}
		}
	}
	return names, nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
