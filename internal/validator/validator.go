// Package validator checks that a session's declared tab count matches the
// tabs recorded across its windows.
package validator

import (
	"context"

	"github.com/vincentbai/tsmcheck/internal/models"
	"golang.org/x/sync/errgroup"
)

// Verdict is the outcome of comparing counted against declared tabs.
type Verdict struct {
	Valid    bool
	Counted  uint
	Declared uint
}

func (v Verdict) String() string {
	if v.Valid {
		return "valid"
	}
	return "invalid"
}

// Result is one line of a validation run. Err is set when the session could
// not be decoded, in which case the verdict is meaningless.
type Result struct {
	Index   int
	Name    string
	Tag     string
	Date    uint64
	Windows int
	Verdict Verdict
	Err     error
}

// Check never fails: an empty session counts zero tabs.
func Check(session models.Session) Verdict {
	counted := session.CountTabs()
	return Verdict{
		Valid:    counted == session.TabsNumber,
		Counted:  counted,
		Declared: session.TabsNumber,
	}
}

// ValidateAll checks every session and returns results in input order.
// workers bounds how many sessions are checked at once; zero or less means
// no bound.
func ValidateAll(ctx context.Context, sessions models.SessionList, workers int) ([]Result, error) {
	return ValidateOutcomes(ctx, sessions.Outcomes(), workers)
}

// ValidateOutcomes is ValidateAll for per-session decode results; failed
// outcomes are carried through with their error.
func ValidateOutcomes(ctx context.Context, outcomes []models.SessionOutcome, workers int) ([]Result, error) {
	results := make([]Result, len(outcomes))

	group, groupContext := errgroup.WithContext(ctx)
	if workers > 0 {
		group.SetLimit(workers)
	}
	for i, outcome := range outcomes {
		if groupContext.Err() != nil {
			break
		}
		i, outcome := i, outcome
		group.Go(func() error {
			if err := groupContext.Err(); err != nil {
				return err
			}
			// Each goroutine owns results[i]; no other slot is touched.
			results[i] = newResult(outcome)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func newResult(outcome models.SessionOutcome) Result {
	session := outcome.Session
	result := Result{
		Index:   outcome.Index,
		Name:    session.Name,
		Tag:     session.Tag,
		Date:    session.Date,
		Windows: len(session.Windows),
		Err:     outcome.Err,
	}
	if outcome.Err == nil {
		result.Verdict = Check(session)
	}
	return result
}

// Summary tallies a run.
type Summary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Failed  int `json:"failed"`
}

func Summarize(results []Result) Summary {
	summary := Summary{Total: len(results)}
	for _, result := range results {
		switch {
		case result.Err != nil:
			summary.Failed++
		case result.Verdict.Valid:
			summary.Valid++
		default:
			summary.Invalid++
		}
	}
	return summary
}
