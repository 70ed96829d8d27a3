/*
Package factory loads interest-rate tables from JSON configuration.

PURPOSE:
  Rate periods come from regulator publications and are loaded at startup
  (or pushed through the admin API). The registry itself does not validate
  the table; this loader is the configuration boundary that rejects
  overlapping or reversed ranges before they ever reach a simulation.

FORMAT:
  [
    {"start": "2024-10-01", "end": "2024-12-31", "annual_rate": "0.0850"},
    {"start": "2025-01-01", "end": "2025-03-31", "annual_rate": "0.0875"}
  ]

SEE ALSO:
  - engine/rates.go: Registry consuming the loaded periods
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/penalty-engine/engine"
)

// RatePeriodJSON is the wire form of one rate period.
type RatePeriodJSON struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	AnnualRate string `json:"annual_rate"`
}

// LoadRates reads and validates a rate table file.
func LoadRates(path string) ([]engine.RatePeriod, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	return ParseRates(raw)
}

// ParseRates decodes and validates a JSON rate table. Periods are returned
// sorted by start date.
func ParseRates(raw []byte) ([]engine.RatePeriod, error) {
	var entries []RatePeriodJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode rate table: %w", err)
	}

	periods := make([]engine.RatePeriod, 0, len(entries))
	for i, e := range entries {
		p, err := parsePeriod(e)
		if err != nil {
			return nil, fmt.Errorf("rate period %d: %w", i, err)
		}
		periods = append(periods, p)
	}

	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Start.Before(periods[j].Start)
	})

	for i := 1; i < len(periods); i++ {
		prev, cur := periods[i-1], periods[i]
		if !prev.End.Before(cur.Start) {
			return nil, &engine.OverlapError{
				First:  fmt.Sprintf("[%s, %s]", prev.Start, prev.End),
				Second: fmt.Sprintf("[%s, %s]", cur.Start, cur.End),
			}
		}
	}
	return periods, nil
}

func parsePeriod(e RatePeriodJSON) (engine.RatePeriod, error) {
	start, err := engine.ParseDate(e.Start)
	if err != nil {
		return engine.RatePeriod{}, fmt.Errorf("start: %w", err)
	}
	end, err := engine.ParseDate(e.End)
	if err != nil {
		return engine.RatePeriod{}, fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return engine.RatePeriod{}, fmt.Errorf("end %s before start %s", end, start)
	}
	rate, err := decimal.NewFromString(e.AnnualRate)
	if err != nil {
		return engine.RatePeriod{}, fmt.Errorf("annual_rate: %w", err)
	}
	return engine.RatePeriod{Start: start, End: end, AnnualRate: rate}, nil
}
