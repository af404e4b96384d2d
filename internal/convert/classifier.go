// Package convert infers trial→paid conversion events from the wide-window
// license feed.
package convert

import (
	"strings"
	"time"

	"github.com/emberline/marketpulse/internal/extract"
	"github.com/emberline/marketpulse/internal/models"
	"github.com/emberline/marketpulse/internal/normalize"
)

// DefaultLookbackDays bounds how far back a trial may have started and still
// count as converting on the report day.
const DefaultLookbackDays = 60

// Classify scans raw license records fetched over the lookback window and
// returns the ones that converted from trial to paid on the report day,
// normalized and flagged as conversions.
//
// A record qualifies when all hold: its license type is a paid tier, it
// carries a recorded trial-start date, its lastUpdated date equals the report
// day exactly, and the trial started no more than lookbackDays before the
// report day. A paid record without a trial-start date is an organic new
// license, not a conversion.
//
// Known limitation: an unrelated same-day metadata update on an already
// converted license satisfies the same conditions and is reported again.
func Classify(records []extract.RawRecord, day time.Time, lookbackDays int) []*models.Event {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	day = truncate(day)

	var out []*models.Event
	for _, rec := range records {
		trialStart, ok := IsConversion(rec, day, lookbackDays)
		if !ok {
			continue
		}
		e := normalize.License(rec)
		e.IsConversion = true
		e.TrialStartedOn = &trialStart
		out = append(out, e)
	}
	return out
}

// IsConversion reports whether a single raw license record represents a
// trial that converted to paid on the given day, returning the trial-start
// date when it does.
func IsConversion(rec extract.RawRecord, day time.Time, lookbackDays int) (time.Time, bool) {
	licenseType := strings.ToUpper(extract.FirstString(rec["licenseType"], rec["tier"]))
	if licenseType == "" || licenseType == models.TypeEvaluation {
		return time.Time{}, false
	}

	trialStart, ok := parseDay(extract.FirstString(
		rec["latestEvaluationStartDate"],
		rec["evaluationStartDate"],
	))
	if !ok {
		return time.Time{}, false
	}

	updated, ok := parseDay(extract.FirstString(rec["lastUpdated"]))
	if !ok || !updated.Equal(day) {
		return time.Time{}, false
	}

	gap := int(day.Sub(trialStart).Hours() / 24)
	if gap < 0 || gap > lookbackDays {
		return time.Time{}, false
	}
	return trialStart, true
}

// parseDay reads the date half of an ISO timestamp ("2024-02-10" or
// "2024-02-10T08:15:00Z").
func parseDay(s string) (time.Time, bool) {
	if len(s) < 10 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
