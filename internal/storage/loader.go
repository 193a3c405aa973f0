package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"woningwaarde/server/internal/models"
)

// ReadCandidateCSV reads a header-keyed candidate table. Every record becomes
// a raw row map; typing and validation happen later in the extractor, so a
// malformed value here does not abort the whole file.
func ReadCandidateCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty candidate file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range header {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadCandidateFile reads a candidate CSV from disk.
func LoadCandidateFile(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candidate file: %w", err)
	}
	defer f.Close()
	return ReadCandidateCSV(f)
}

// subjectDocument mirrors models.SubjectProperty with a string valuation date
// so subject files can carry the same date formats as candidate tables.
type subjectDocument struct {
	models.SubjectProperty
	ValuationDate string `json:"valuation_date"`
}

var subjectDateLayouts = []string{"2006-01-02", "02-01-2006", time.RFC3339}

// LoadSubjectFile reads the subject property from a JSON document. A missing
// valuation date defaults to today.
func LoadSubjectFile(path string) (models.SubjectProperty, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.SubjectProperty{}, fmt.Errorf("failed to read subject file: %w", err)
	}
	return ParseSubject(data)
}

func ParseSubject(data []byte) (models.SubjectProperty, error) {
	var doc subjectDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.SubjectProperty{}, fmt.Errorf("failed to parse subject: %w", err)
	}

	subject := doc.SubjectProperty
	if strings.TrimSpace(doc.ValuationDate) == "" {
		subject.ValuationDate = time.Now()
		return subject, nil
	}
	for _, layout := range subjectDateLayouts {
		if t, err := time.Parse(layout, doc.ValuationDate); err == nil {
			subject.ValuationDate = t
			return subject, nil
		}
	}
	return models.SubjectProperty{}, fmt.Errorf("unparseable valuation date %q", doc.ValuationDate)
}
