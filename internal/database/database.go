package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"woningwaarde/server/internal/models"
)

// CandidateRow is one raw comparable row as imported, keyed by the source it
// came from. Rows are stored untyped; extraction runs at valuation time so an
// import never fails on a single bad value.
type CandidateRow struct {
	ID        uint      `gorm:"primaryKey"`
	Source    string    `gorm:"index"`
	RowJSON   string
	CreatedAt time.Time
}

// ValuationRun persists a completed run for later retrieval.
type ValuationRun struct {
	ID         string    `gorm:"primaryKey"`
	Status     string
	ResultJSON string
	CreatedAt  time.Time
}

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&CandidateRow{}, &ValuationRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db, logger: logger}, nil
}

// Transaction runs fn inside a database transaction.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.db.Transaction(fn)
}

// SaveCandidateRows appends raw rows under the given source.
func (d *Database) SaveCandidateRows(source string, rows []map[string]string) error {
	return SaveCandidateRows(d.db, source, rows)
}

// SaveCandidateRows is the transaction-friendly variant used by the batch
// processor.
func SaveCandidateRows(tx *gorm.DB, source string, rows []map[string]string) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]CandidateRow, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
		records = append(records, CandidateRow{Source: source, RowJSON: string(data)})
	}
	return tx.CreateInBatches(records, 200).Error
}

// DeleteCandidateRows removes all rows of a source, for replacing imports.
func (d *Database) DeleteCandidateRows(source string) (int64, error) {
	res := d.db.Where("source = ?", source).Delete(&CandidateRow{})
	return res.RowsAffected, res.Error
}

// GetCandidateRows returns the raw rows stored under a source, in import order.
func (d *Database) GetCandidateRows(source string) ([]map[string]string, error) {
	var records []CandidateRow
	if err := d.db.Where("source = ?", source).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		var row map[string]string
		if err := json.Unmarshal([]byte(rec.RowJSON), &row); err != nil {
			d.logger.WithError(err).WithField("row_id", rec.ID).Warn("Skipping undecodable stored row")
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (d *Database) CountCandidateRows(source string) (int64, error) {
	var count int64
	err := d.db.Model(&CandidateRow{}).Where("source = ?", source).Count(&count).Error
	return count, err
}

// Sources lists the distinct candidate sources currently stored.
func (d *Database) Sources() ([]string, error) {
	var sources []string
	err := d.db.Model(&CandidateRow{}).Distinct("source").Order("source").Pluck("source", &sources).Error
	return sources, err
}

// SaveRun persists a completed valuation result.
func (d *Database) SaveRun(result *models.ValuationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode valuation result: %w", err)
	}
	return d.db.Create(&ValuationRun{
		ID:         result.RunID,
		Status:     string(result.Status),
		ResultJSON: string(data),
		CreatedAt:  result.CreatedAt,
	}).Error
}

// GetRun loads a stored run by ID. Returns gorm.ErrRecordNotFound when the
// run does not exist.
func (d *Database) GetRun(id string) (*models.ValuationResult, error) {
	var run ValuationRun
	if err := d.db.First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	var result models.ValuationResult
	if err := json.Unmarshal([]byte(run.ResultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored run %s: %w", id, err)
	}
	return &result, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
