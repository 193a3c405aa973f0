package scoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeightsValid(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
}

func TestWeightValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(WeightConfiguration)
		wantErr bool
	}{
		{
			name:    "Valid defaults",
			mutate:  func(WeightConfiguration) {},
			wantErr: false,
		},
		{
			name:    "Sum off by too much",
			mutate:  func(w WeightConfiguration) { w[ComponentArea] += 0.01 },
			wantErr: true,
		},
		{
			name:    "Sum within tolerance",
			mutate:  func(w WeightConfiguration) { w[ComponentArea] += 1e-9 },
			wantErr: false,
		},
		{
			name: "Missing component",
			mutate: func(w WeightConfiguration) {
				delete(w, ComponentGarden)
			},
			wantErr: true,
		},
		{
			name: "Unrecognized component",
			mutate: func(w WeightConfiguration) {
				delete(w, ComponentGarden)
				w["swimming_pool"] = 0.15
			},
			wantErr: true,
		},
		{
			name: "Negative weight",
			mutate: func(w WeightConfiguration) {
				w[ComponentGarden] = -0.15
				w[ComponentArea] = 0.65
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(w)

			err := w.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidWeights)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()

	t.Run("Valid file", func(t *testing.T) {
		path := filepath.Join(dir, "weights.json")
		data, err := json.Marshal(DefaultWeights())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0644))

		w, err := LoadWeights(path)
		require.NoError(t, err)
		assert.InDelta(t, 0.35, w[ComponentArea], 1e-9)
	})

	t.Run("Invalid configuration rejected at load", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"area": 1.0}`), 0644))

		_, err := LoadWeights(path)
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadWeights(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}
