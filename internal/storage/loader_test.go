package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woningwaarde/server/internal/models"
)

func TestReadCandidateCSV(t *testing.T) {
	input := strings.Join([]string{
		"ID,Street,Sale_Price,Area_m2,Sale_Date",
		`c1,Elandsgracht,"€ 650.000,-",100,01-03-2025`,
		"c2,Overtoom,540000,88,2025-02-14",
	}, "\n")

	rows, err := ReadCandidateCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Headers are lower-cased, values trimmed.
	assert.Equal(t, "Elandsgracht", rows[0]["street"])
	assert.Equal(t, "€ 650.000,-", rows[0]["sale_price"])
	assert.Equal(t, "2025-02-14", rows[1]["sale_date"])
}

func TestReadCandidateCSVRaggedRows(t *testing.T) {
	input := "id,street,sale_price\nc1,Elandsgracht\n"

	rows, err := ReadCandidateCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["sale_price"])
}

func TestReadCandidateCSVEmpty(t *testing.T) {
	_, err := ReadCandidateCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseSubject(t *testing.T) {
	doc := []byte(`{
		"valuation_date": "01-06-2025",
		"living_area_m2": 100,
		"street": "Elandsgracht",
		"neighbourhood": "Jordaan",
		"rooms": 3,
		"bedrooms": 2,
		"energy_label": "B",
		"has_garden": false,
		"has_balcony": "ja"
	}`)

	subject, err := ParseSubject(doc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), subject.ValuationDate)
	assert.Equal(t, "Elandsgracht", subject.Street)
	assert.Equal(t, models.PresenceNo, subject.HasGarden)
	assert.Equal(t, models.PresenceYes, subject.HasBalcony)
	assert.Equal(t, models.PresenceUnknown, subject.HasTerrace)
}

func TestParseSubjectDefaultsDate(t *testing.T) {
	subject, err := ParseSubject([]byte(`{"street": "Elandsgracht", "living_area_m2": 80}`))
	require.NoError(t, err)
	assert.False(t, subject.ValuationDate.IsZero())
}

func TestParseSubjectBadDate(t *testing.T) {
	_, err := ParseSubject([]byte(`{"valuation_date": "morgen"}`))
	assert.Error(t, err)
}
