// Package report renders reconciled event groups into the Slack message text.
package report

import (
	"fmt"
	"strings"

	"github.com/emberline/marketpulse/internal/models"
	"github.com/emberline/marketpulse/internal/reconcile"
)

const (
	conversionsHeader = ":tada: Trials converted to paid"
	licensesHeader    = ":airplane: New licenses"
	churnHeader       = ":heavy_minus_sign: Uninstalls / Unsubscribes"

	noContact = "—"
)

// Render produces the combined message for one run: one section per product
// group, subsections in conversions / new licenses / churn order. Groups with
// nothing to show are omitted; an empty result renders the single "no
// changes" line.
func Render(res reconcile.Result) string {
	dateLabel := res.Day.Format("2006-01-02")

	var parts []string
	for i := range res.Groups {
		g := &res.Groups[i]
		if g.Empty() {
			continue
		}
		parts = append(parts, renderGroup(g, dateLabel))
	}

	if len(parts) == 0 {
		return NoChanges(res)
	}
	return strings.Join(parts, "\n\n")
}

// NoChanges is the placeholder message for a day with nothing to report.
func NoChanges(res reconcile.Result) string {
	return fmt.Sprintf("ℹ️ No new licenses or uninstalls for %s (UTC).", res.Day.Format("2006-01-02"))
}

func renderGroup(g *reconcile.Group, dateLabel string) string {
	var sections []string

	if len(g.Conversions) > 0 {
		sections = append(sections, renderSection(conversionsHeader, g.Conversions))
	}
	if len(g.Licenses) > 0 {
		sections = append(sections, renderSection(licensesHeader, g.Licenses))
	}
	if len(g.Churn) > 0 {
		sections = append(sections, renderSection(churnHeader, g.Churn))
	}

	header := fmt.Sprintf("%s Marketplace Events (%s, UTC)", g.Title, dateLabel)
	return header + "\n\n" + strings.Join(sections, "\n\n")
}

func renderSection(header string, events []*models.Event) string {
	lines := make([]string, 0, len(events)+1)
	lines = append(lines, header)
	for _, e := range events {
		lines = append(lines, renderLine(e))
	}
	return strings.Join(lines, "\n")
}

func renderLine(e *models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "• %s · %s · %s", e.Customer, contactLabel(e), e.EventType)

	if e.SeatCount != nil {
		fmt.Fprintf(&b, " · %d users", *e.SeatCount)
	}
	if e.DedupID != "" {
		fmt.Fprintf(&b, " · `%s`", e.DedupID)
	}
	if e.TrialStartedOn != nil {
		fmt.Fprintf(&b, " · trial started %s", e.TrialStartedOn.Format("2006-01-02"))
	}
	if e.SameDayReinstall {
		b.WriteString(" · reinstalled same day")
	}
	return b.String()
}

func contactLabel(e *models.Event) string {
	switch {
	case e.ContactName != "" && e.ContactEmail != "":
		return fmt.Sprintf("%s (%s)", e.ContactName, e.ContactEmail)
	case e.ContactName != "":
		return e.ContactName
	case e.ContactEmail != "":
		return e.ContactEmail
	default:
		return noContact
	}
}
