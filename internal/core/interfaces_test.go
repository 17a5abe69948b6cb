// Package core_test tests the core data model.
package core_test

import (
	"encoding/json"
	"testing"

	"github.com/book-expert/variation-service/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 {
	return &v
}

func TestNeutralParameters(t *testing.T) {
	t.Parallel()

	params := core.NeutralParameters()

	assert.InDelta(t, 1.0, params.TempoFactor, 1e-12)
	assert.Zero(t, params.BrightnessDB)
	assert.Zero(t, params.BassDB)
	assert.Zero(t, params.Reverb)
	assert.Zero(t, params.Compression)
}

func TestOverrides_Apply(t *testing.T) {
	t.Parallel()

	interpreted := core.ParameterSet{
		TempoFactor:  1.13,
		BrightnessDB: 8.0,
		BassDB:       0.0,
		Reverb:       0.25,
		Compression:  0.0,
	}

	tests := []struct {
		name      string
		overrides core.Overrides
		want      core.ParameterSet
	}{
		{
			name:      "no overrides keeps interpreted values",
			overrides: core.Overrides{},
			want:      interpreted,
		},
		{
			name: "explicit zero replaces interpreted value",
			overrides: core.Overrides{
				BrightnessDB: ptr(0.0),
			},
			want: core.ParameterSet{
				TempoFactor:  1.13,
				BrightnessDB: 0.0,
				BassDB:       0.0,
				Reverb:       0.25,
				Compression:  0.0,
			},
		},
		{
			name: "all fields overridden",
			overrides: core.Overrides{
				TempoFactor:  ptr(0.8),
				BrightnessDB: ptr(-3),
				BassDB:       ptr(4),
				Reverb:       ptr(0.1),
				Compression:  ptr(0.9),
			},
			want: core.ParameterSet{
				TempoFactor:  0.8,
				BrightnessDB: -3,
				BassDB:       4,
				Reverb:       0.1,
				Compression:  0.9,
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, testCase.overrides.Apply(interpreted))
		})
	}
}

func TestVariationRequest_AbsentFieldsDecodeAsNil(t *testing.T) {
	t.Parallel()

	var req core.VariationRequest

	err := json.Unmarshal([]byte(`{"prompt":"fast bright","bass_db":2.5}`), &req)
	require.NoError(t, err)

	assert.Equal(t, "fast bright", req.Prompt)
	assert.Nil(t, req.TempoFactor)
	assert.Nil(t, req.Reverb)
	require.NotNil(t, req.BassDB)
	assert.InDelta(t, 2.5, *req.BassDB, 1e-12)
}
