// Package report renders validation results for people and for machines.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dustin/go-humanize"
	"github.com/vincentbai/tsmcheck/internal/validator"
)

type Row struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Tag      string `json:"tag"`
	Date     uint64 `json:"date"`
	Windows  int    `json:"windows"`
	Valid    bool   `json:"valid"`
	Counted  uint   `json:"counted"`
	Declared uint   `json:"declared"`
	Error    string `json:"error,omitempty"`
}

type Document struct {
	RunID   string            `json:"run_id,omitempty"`
	Summary validator.Summary `json:"summary"`
	Results []Row             `json:"results"`
}

func NewDocument(runID string, results []validator.Result) Document {
	rows := make([]Row, 0, len(results))
	for _, result := range results {
		row := Row{
			Index:    result.Index,
			Name:     result.Name,
			Tag:      result.Tag,
			Date:     result.Date,
			Windows:  result.Windows,
			Valid:    result.Err == nil && result.Verdict.Valid,
			Counted:  result.Verdict.Counted,
			Declared: result.Verdict.Declared,
		}
		if result.Err != nil {
			row.Error = result.Err.Error()
		}
		rows = append(rows, row)
	}
	return Document{RunID: runID, Summary: validator.Summarize(results), Results: rows}
}

func JSON(runID string, results []validator.Result) ([]byte, error) {
	data, err := sonic.MarshalIndent(NewDocument(runID, results), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// Text writes one line per session followed by a summary line.
func Text(w io.Writer, results []validator.Result, now time.Time) error {
	for _, result := range results {
		if _, err := fmt.Fprintln(w, Line(result, now)); err != nil {
			return err
		}
	}
	summary := validator.Summarize(results)
	_, err := fmt.Fprintf(w, "%d sessions: %d valid, %d invalid, %d failed to decode\n",
		summary.Total, summary.Valid, summary.Invalid, summary.Failed)
	return err
}

func Line(result validator.Result, now time.Time) string {
	prefix := fmt.Sprintf("[%d] %q", result.Index, result.Name)
	if result.Err != nil {
		return fmt.Sprintf("%s: decode error: %v", prefix, result.Err)
	}
	if result.Tag != "" {
		prefix += " #" + result.Tag
	}
	prefix += " (" + savedAt(result.Date, now) + ")"

	verdict := result.Verdict
	if verdict.Valid {
		return fmt.Sprintf("%s: valid, %s in %s", prefix,
			plural(uint64(verdict.Counted), "tab"), plural(uint64(result.Windows), "window"))
	}
	return fmt.Sprintf("%s: invalid, counted %d tabs but declared %d", prefix, verdict.Counted, verdict.Declared)
}

// savedAt renders a session date given in milliseconds since the epoch.
func savedAt(date uint64, now time.Time) string {
	if date == 0 || date > math.MaxInt64 {
		return "date unknown"
	}
	return "saved " + humanize.RelTime(time.UnixMilli(int64(date)), now, "ago", "from now")
}

func plural(n uint64, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}
