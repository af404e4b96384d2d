// Package enrich recovers customer and contact identities for churn events.
//
// The feedback feed routinely omits the fields the license feed carries, so
// an index built from the wide-window license records maps each entitlement
// to the best customer/contact triple seen for it. Churn rows missing those
// fields are backfilled from the index; fields already populated are left
// alone.
package enrich

import (
	"github.com/emberline/marketpulse/internal/extract"
	"github.com/emberline/marketpulse/internal/models"
	"github.com/emberline/marketpulse/internal/normalize"
)

// Contact is the recovered identity triple for one entitlement.
type Contact struct {
	Customer     string
	ContactName  string
	ContactEmail string
}

// Index maps entitlement identifiers to recovered contact data.
type Index map[string]Contact

// Build constructs the index from raw license records. Records without an
// identifying field are skipped; the first record seen for an entitlement
// wins except that later records fill fields the first left empty.
func Build(records []extract.RawRecord) Index {
	idx := make(Index, len(records))
	for _, rec := range records {
		id := normalize.DedupID(rec)
		if id == "" {
			continue
		}

		e := normalize.License(rec)
		c := idx[id]
		if c.Customer == "" || c.Customer == models.UnknownCustomer {
			c.Customer = e.Customer
		}
		if c.ContactName == "" {
			c.ContactName = e.ContactName
		}
		if c.ContactEmail == "" {
			c.ContactEmail = e.ContactEmail
		}
		idx[id] = c
	}
	return idx
}

// Apply backfills an event's missing customer/contact fields from the index.
// Only gaps are filled; a populated field is never overwritten. Events
// without an identifier, or with no index entry, are returned unchanged.
func (idx Index) Apply(e *models.Event) {
	if e == nil || e.DedupID == "" {
		return
	}
	c, ok := idx[e.DedupID]
	if !ok {
		return
	}

	if unknownCustomer(e.Customer) && !unknownCustomer(c.Customer) {
		e.Customer = c.Customer
	}
	if e.ContactName == "" {
		e.ContactName = c.ContactName
	}
	if e.ContactEmail == "" {
		e.ContactEmail = c.ContactEmail
	}
}

func unknownCustomer(s string) bool {
	return s == "" || s == models.Unknown || s == models.UnknownCustomer
}
