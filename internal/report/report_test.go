package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentbai/tsmcheck/internal/validator"
)

var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func sampleResults() []validator.Result {
	return []validator.Result{
		{
			Index:   0,
			Name:    "A",
			Tag:     "work",
			Date:    uint64(now.Add(-3 * time.Hour).UnixMilli()),
			Windows: 1,
			Verdict: validator.Verdict{Valid: true, Counted: 2, Declared: 2},
		},
		{
			Index:   1,
			Name:    "B",
			Windows: 2,
			Verdict: validator.Verdict{Valid: false, Counted: 2, Declared: 3},
		},
		{
			Index: 2,
			Name:  "",
			Err:   errors.New(`invalid "date" at [2].date: expected unsigned 64-bit integer, got string`),
		},
	}
}

func TestLine(t *testing.T) {
	results := sampleResults()

	assert.Equal(t, `[0] "A" #work (saved 3 hours ago): valid, 2 tabs in 1 window`, Line(results[0], now))
	assert.Equal(t, `[1] "B" (date unknown): invalid, counted 2 tabs but declared 3`, Line(results[1], now))
	assert.Equal(t, `[2] "": decode error: invalid "date" at [2].date: expected unsigned 64-bit integer, got string`, Line(results[2], now))
}

func TestLineLargeCounts(t *testing.T) {
	result := validator.Result{
		Name:    "big",
		Windows: 1200,
		Verdict: validator.Verdict{Valid: true, Counted: 15000, Declared: 15000},
	}
	assert.Contains(t, Line(result, now), "15,000 tabs in 1,200 windows")
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sampleResults(), now))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "3 sessions: 1 valid, 1 invalid, 1 failed to decode", lines[3])
}

func TestJSON(t *testing.T) {
	data, err := JSON("run-1", sampleResults())
	require.NoError(t, err)

	var document Document
	require.NoError(t, json.Unmarshal(data, &document))

	assert.Equal(t, "run-1", document.RunID)
	assert.Equal(t, validator.Summary{Total: 3, Valid: 1, Invalid: 1, Failed: 1}, document.Summary)
	require.Len(t, document.Results, 3)

	assert.True(t, document.Results[0].Valid)
	assert.Equal(t, "work", document.Results[0].Tag)

	assert.False(t, document.Results[1].Valid)
	assert.Equal(t, uint(2), document.Results[1].Counted)
	assert.Equal(t, uint(3), document.Results[1].Declared)

	assert.False(t, document.Results[2].Valid)
	assert.Contains(t, document.Results[2].Error, `"date"`)
}

func TestJSONOmitsEmptyRunID(t *testing.T) {
	data, err := JSON("", nil)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "run_id")
	assert.Contains(t, string(data), `"results"`)
}
