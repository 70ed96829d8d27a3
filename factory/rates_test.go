package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/factory"
)

func TestParseRates_ValidTable(t *testing.T) {
	raw := []byte(`[
		{"start": "2025-01-01", "end": "2025-03-31", "annual_rate": "0.0850"},
		{"start": "2024-10-01", "end": "2024-12-31", "annual_rate": "0.0800"}
	]`)

	periods, err := factory.ParseRates(raw)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	// Sorted by start date regardless of input order
	assert.Equal(t, "2024-10-01", periods[0].Start.String())
	assert.Equal(t, "2025-01-01", periods[1].Start.String())
	assert.True(t, periods[0].AnnualRate.Equal(engine.MustDecimal("0.0800")))
}

func TestParseRates_RejectsOverlap(t *testing.T) {
	raw := []byte(`[
		{"start": "2024-10-01", "end": "2024-12-31", "annual_rate": "0.0800"},
		{"start": "2024-12-31", "end": "2025-03-31", "annual_rate": "0.0850"}
	]`)

	_, err := factory.ParseRates(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrOverlappingRatePeriods)
	assert.True(t, engine.IsConfiguration(err))
}

func TestParseRates_RejectsReversedRange(t *testing.T) {
	raw := []byte(`[{"start": "2025-03-31", "end": "2025-01-01", "annual_rate": "0.0850"}]`)

	_, err := factory.ParseRates(raw)
	assert.Error(t, err)
}

func TestParseRates_RejectsBadValues(t *testing.T) {
	for name, raw := range map[string]string{
		"bad json": `{`,
		"bad date": `[{"start": "01/01/2025", "end": "2025-03-31", "annual_rate": "0.0850"}]`,
		"bad rate": `[{"start": "2025-01-01", "end": "2025-03-31", "annual_rate": "eight"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := factory.ParseRates([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestParseRates_AllowsGaps(t *testing.T) {
	// Gaps are legal at load time; they surface as RateNotFound when hit.
	raw := []byte(`[
		{"start": "2024-10-01", "end": "2024-12-31", "annual_rate": "0.0800"},
		{"start": "2025-04-01", "end": "2025-06-30", "annual_rate": "0.0875"}
	]`)

	periods, err := factory.ParseRates(raw)
	require.NoError(t, err)
	assert.Len(t, periods, 2)
}

func TestLoadRates_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"start": "2025-01-01", "end": "2025-03-31", "annual_rate": "0.0850"}]`), 0o644))

	periods, err := factory.LoadRates(path)
	require.NoError(t, err)
	assert.Len(t, periods, 1)

	_, err = factory.LoadRates(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
