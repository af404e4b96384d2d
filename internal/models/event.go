// Package models defines the canonical event row produced by normalization.
package models

import "time"

// Event classification labels. License rows carry the vendor's license tier
// (EVALUATION, COMMERCIAL, or any other tier uppercased); churn rows carry
// the feedback action.
const (
	TypeEvaluation  = "EVALUATION"
	TypeCommercial  = "COMMERCIAL"
	TypeUninstall   = "UNINSTALL"
	TypeUnsubscribe = "UNSUBSCRIBE"
	TypeDisable     = "DISABLE"

	// TypeLicense is the generic fallback when a license record reports
	// no tier at all.
	TypeLicense = "LICENSE"

	// Placeholders used when every identity fallback misses. License rows
	// get the long form, churn rows the bare "Unknown" (which is also what
	// the enrichment index looks for when backfilling).
	UnknownCustomer = "Unknown customer"
	Unknown         = "Unknown"
	UnknownProduct  = "Unknown app"
)

// Event is the canonical row the reconciliation engine operates on. One Event
// is built per raw vendor record; license-derived and churn-derived events
// share the shape but populate different subsets (churn events never carry
// SeatCount or IsConversion).
type Event struct {
	// Product is the display name; ProductKey is the stable grouping
	// identity, falling back to the display name when the record carries
	// no dedicated key.
	Product    string `json:"product"`
	ProductKey string `json:"productKey"`

	Customer     string `json:"customer"`
	ContactName  string `json:"contactName,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`

	EventType string `json:"eventType"`

	// SeatCount is parsed out of the free-text tier label when present.
	SeatCount *int `json:"seatCount,omitempty"`

	// DedupID is the most specific stable identifier available, or empty
	// when the record carries none. It is never fabricated: a guessed value
	// would collide across unrelated licenses.
	DedupID string `json:"dedupId,omitempty"`

	// IsConversion marks a license row classified as trial→paid;
	// TrialStartedOn is carried only on such rows.
	IsConversion   bool       `json:"isConversion,omitempty"`
	TrialStartedOn *time.Time `json:"trialStartedOn,omitempty"`

	// SameDayReinstall annotates a churn row whose identifier also showed
	// up among the same product's license rows for the day.
	SameDayReinstall bool `json:"sameDayReinstall,omitempty"`
}

// HasContact reports whether either contact half is populated.
func (e *Event) HasContact() bool {
	return e.ContactName != "" || e.ContactEmail != ""
}

// IsChurn reports whether the event came from the churn feed.
func (e *Event) IsChurn() bool {
	switch e.EventType {
	case TypeUninstall, TypeUnsubscribe, TypeDisable:
		return true
	}
	return false
}
