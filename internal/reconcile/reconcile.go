// Package reconcile runs the event reconciliation engine: classify
// conversions, normalize the day's license and churn records, enrich churn
// rows, drop duplicates, and group everything by product for the report.
package reconcile

import (
	"sort"
	"time"

	"github.com/emberline/marketpulse/internal/convert"
	"github.com/emberline/marketpulse/internal/enrich"
	"github.com/emberline/marketpulse/internal/extract"
	"github.com/emberline/marketpulse/internal/models"
	"github.com/emberline/marketpulse/internal/normalize"
)

// Input carries one run's raw record sets and settings. WideLicenses spans
// the lookback window ending on Day; DayLicenses and Churn cover Day only.
type Input struct {
	Day          time.Time
	LookbackDays int

	// Apps is an optional allow-list of product display names.
	Apps []string

	// Seen holds identifiers already reported by previous runs.
	Seen map[string]struct{}

	WideLicenses []extract.RawRecord
	DayLicenses  []extract.RawRecord
	Churn        []extract.RawRecord

	ProductNames normalize.ProductNames
}

// Group is one report section: every event for one product key.
type Group struct {
	Key   string
	Title string

	Conversions []*models.Event
	Licenses    []*models.Event
	Churn       []*models.Event
}

// Empty reports whether the group has nothing to show.
func (g *Group) Empty() bool {
	return len(g.Conversions) == 0 && len(g.Licenses) == 0 && len(g.Churn) == 0
}

// Result is the reconciled run output: groups ordered by product key, plus
// the identifiers to persist for next-run suppression.
type Result struct {
	Day    time.Time
	Groups []Group
	NewIDs []string
}

// Empty reports whether the run produced no events at all.
func (r *Result) Empty() bool {
	return len(r.Groups) == 0
}

// Reconcile runs the engine over one day's record sets. Identical input
// yields identical output: groups are ordered lexicographically by key and
// rows keep their feed order within each subsection.
func Reconcile(in Input) Result {
	conversions := convert.Classify(in.WideLicenses, in.Day, in.LookbackDays)

	converted := make(map[string]struct{}, len(conversions))
	for _, e := range conversions {
		if e.DedupID != "" {
			converted[e.DedupID] = struct{}{}
		}
	}

	var licenses []*models.Event
	for _, rec := range in.DayLicenses {
		e := normalize.License(rec)
		// A converted license appears once, under conversions.
		if _, dup := converted[e.DedupID]; dup && e.DedupID != "" {
			continue
		}
		licenses = append(licenses, e)
	}

	idx := enrich.Build(in.WideLicenses)
	var churn []*models.Event
	for _, rec := range in.Churn {
		e := normalize.Churn(rec, in.ProductNames)
		idx.Apply(e)
		churn = append(churn, e)
	}

	allow := allowList(in.Apps)
	// Conversions are exempt from the seen set: the entitlement id is
	// stable across the trial and the paid grant, so the id was persisted
	// when the trial itself was announced.
	conversions = filterApps(conversions, allow)
	licenses = filter(licenses, allow, in.Seen)
	// Churn rows are not suppressed by the seen set: the persisted ids are
	// license identifiers, and a later uninstall of a seen license is news.
	churn = filterApps(churn, allow)

	groups := group(conversions, licenses, churn)
	return Result{
		Day:    in.Day,
		Groups: groups,
		NewIDs: collectIDs(conversions, licenses),
	}
}

func allowList(apps []string) map[string]struct{} {
	if len(apps) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		m[a] = struct{}{}
	}
	return m
}

func filter(events []*models.Event, allow map[string]struct{}, seen map[string]struct{}) []*models.Event {
	var out []*models.Event
	for _, e := range events {
		if allow != nil {
			if _, ok := allow[e.Product]; !ok {
				continue
			}
		}
		if e.DedupID != "" {
			if _, ok := seen[e.DedupID]; ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func filterApps(events []*models.Event, allow map[string]struct{}) []*models.Event {
	if allow == nil {
		return events
	}
	var out []*models.Event
	for _, e := range events {
		if _, ok := allow[e.Product]; ok {
			out = append(out, e)
		}
	}
	return out
}

func group(conversions, licenses, churn []*models.Event) []Group {
	byKey := make(map[string]*Group)
	names := make(map[string][]string)

	add := func(e *models.Event, bucket func(*Group, *models.Event)) {
		g, ok := byKey[e.ProductKey]
		if !ok {
			g = &Group{Key: e.ProductKey}
			byKey[e.ProductKey] = g
		}
		names[e.ProductKey] = append(names[e.ProductKey], e.Product)
		bucket(g, e)
	}

	for _, e := range conversions {
		add(e, func(g *Group, e *models.Event) { g.Conversions = append(g.Conversions, e) })
	}
	for _, e := range licenses {
		add(e, func(g *Group, e *models.Event) { g.Licenses = append(g.Licenses, e) })
	}
	for _, e := range churn {
		add(e, func(g *Group, e *models.Event) { g.Churn = append(g.Churn, e) })
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		g := byKey[k]
		g.Title = prettiestName(names[k])
		markReinstalls(g)
		out = append(out, *g)
	}
	return out
}

// prettiestName picks the section title from the display names observed in a
// group: names carrying a space or colon (human labels) beat bare keys, and
// among those the shortest wins.
func prettiestName(candidates []string) string {
	uniq := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}
	if len(uniq) == 0 {
		return models.UnknownProduct
	}

	sort.SliceStable(uniq, func(i, j int) bool {
		hi, hj := humanLabel(uniq[i]), humanLabel(uniq[j])
		if hi != hj {
			return hi
		}
		if len(uniq[i]) != len(uniq[j]) {
			return len(uniq[i]) < len(uniq[j])
		}
		return uniq[i] < uniq[j]
	})
	return uniq[0]
}

func humanLabel(s string) bool {
	for _, r := range s {
		if r == ' ' || r == ':' {
			return true
		}
	}
	return false
}

// markReinstalls flags churn rows whose identifier also appears among the
// same group's license rows. Informational only, never a suppression.
func markReinstalls(g *Group) {
	ids := make(map[string]struct{})
	for _, e := range g.Conversions {
		if e.DedupID != "" {
			ids[e.DedupID] = struct{}{}
		}
	}
	for _, e := range g.Licenses {
		if e.DedupID != "" {
			ids[e.DedupID] = struct{}{}
		}
	}
	for _, e := range g.Churn {
		if e.DedupID == "" {
			continue
		}
		if _, ok := ids[e.DedupID]; ok {
			e.SameDayReinstall = true
		}
	}
}

func collectIDs(sets ...[]*models.Event) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, e := range set {
			if e.DedupID == "" {
				continue
			}
			if _, ok := seen[e.DedupID]; ok {
				continue
			}
			seen[e.DedupID] = struct{}{}
			out = append(out, e.DedupID)
		}
	}
	sort.Strings(out)
	return out
}
