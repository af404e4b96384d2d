// Package normalize maps raw marketplace records into canonical event rows.
//
// The license feed and the churn feed name the same logical fields
// differently (and inconsistently between API versions), so every lookup
// goes through an ordered candidate list rather than a fixed schema.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/emberline/marketpulse/internal/extract"
	"github.com/emberline/marketpulse/internal/models"
)

// seatCountRe pulls an embedded seat count out of a free-text tier label
// such as "10 Users" or "Unlimited Users (Data Center)".
var seatCountRe = regexp.MustCompile(`(?i)(\d+)\s*Users?`)

// ProductNames maps an addon key to a preferred display name. Churn records
// often carry only the key; the table recovers a readable label.
type ProductNames map[string]string

// License maps one raw license record into a canonical event row.
func License(rec extract.RawRecord) *models.Event {
	product := extract.FirstString(
		rec["addonName"],
		extract.Get(rec, "app.name"),
		rec["appName"],
	)
	if product == "" {
		product = models.UnknownProduct
	}

	key := productKey(rec, product)

	techName := extract.FirstPathString(rec, "contactDetails.technicalContact.name")
	billName := extract.FirstPathString(rec, "contactDetails.billingContact.name")
	techEmail := extract.FirstPathString(rec, "contactDetails.technicalContact.email")
	billEmail := extract.FirstPathString(rec, "contactDetails.billingContact.email")

	customer := extract.FirstString(
		extract.Get(rec, "contactDetails.company"),
		rec["cloudSiteHostname"],
		extract.EmailDomain(techEmail),
		extract.EmailDomain(billEmail),
		techName,
		billName,
	)
	if customer == "" {
		customer = models.UnknownCustomer
	}

	licenseType := extract.FirstString(rec["licenseType"], rec["tier"])
	if licenseType == "" {
		licenseType = models.TypeLicense
	}

	return &models.Event{
		Product:      product,
		ProductKey:   key,
		Customer:     customer,
		ContactName:  extract.FirstString(techName, billName),
		ContactEmail: extract.FirstString(techEmail, billEmail),
		EventType:    strings.ToUpper(licenseType),
		SeatCount:    SeatCount(extract.FirstString(rec["tier"])),
		DedupID:      DedupID(rec),
	}
}

// Churn maps one raw churn/feedback record into a canonical event row.
// names is optional; when the record carries only an addon key, the table
// recovers the display name. Customer or contact gaps left here may later be
// backfilled from the entitlement enrichment index.
func Churn(rec extract.RawRecord, names ProductNames) *models.Event {
	key := extract.FirstString(rec["addonKey"], rec["addonName"])

	product := extract.FirstString(rec["addonName"], names[key], rec["addonKey"])
	if product == "" {
		product = models.UnknownProduct
	}
	if key == "" {
		key = product
	}

	email := extract.FirstString(rec["email"])
	site := extract.FirstString(rec["cloudSiteHostname"], rec["cloudId"])

	customer := extract.FirstString(site, extract.EmailDomain(email))
	if customer == "" {
		customer = models.Unknown
	}

	return &models.Event{
		Product:      product,
		ProductKey:   key,
		Customer:     customer,
		ContactName:  extract.FirstString(rec["fullName"]),
		ContactEmail: email,
		EventType:    strings.ToUpper(extract.FirstString(rec["feedbackType"])),
		DedupID:      DedupID(rec),
	}
}

// DedupID resolves the most specific stable identifier a record carries:
// the visible entitlement number first, then the entitlement id variants,
// then a composite of addon key and cloud id. The composite is synthesized
// only when both halves are present; a partial composite would collide
// across unrelated licenses. Returns "" when nothing identifying exists.
func DedupID(rec extract.RawRecord) string {
	if id := extract.FirstString(
		rec["appEntitlementNumber"],
		rec["hostEntitlementNumber"],
		rec["appEntitlementId"],
		rec["hostEntitlementId"],
	); id != "" {
		return id
	}

	addonKey := extract.FirstString(rec["addonKey"])
	cloudID := extract.FirstString(rec["cloudId"])
	if addonKey != "" && cloudID != "" {
		return addonKey + "::" + cloudID
	}
	return ""
}

// SeatCount parses a seat count out of a tier label, or nil when the label
// carries none. Best effort only; non-matching text is not an error.
func SeatCount(tier string) *int {
	m := seatCountRe.FindStringSubmatch(tier)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func productKey(rec extract.RawRecord, fallback string) string {
	key := extract.FirstString(
		rec["addonKey"],
		extract.Get(rec, "app.key"),
		rec["appKey"],
	)
	if key == "" {
		// No dedicated key field; group by display name so grouping
		// never fails outright.
		return fallback
	}
	return key
}
