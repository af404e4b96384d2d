// Package seeder generates realistic fake vendor payloads so the job can be
// rehearsed end to end without marketplace credentials.
package seeder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/emberline/marketpulse/internal/extract"
)

// File names inside a fixtures directory. The run command reads the same
// names back when pointed at a directory instead of the live API.
const (
	LicensesFile = "licenses.json"
	ChurnFile    = "feedback.json"
)

// Options controls how much fake data to generate.
type Options struct {
	Day      time.Time
	Products int
	Licenses int
	Churn    int

	// Seed fixes the random source for reproducible fixtures; zero seeds
	// from the clock.
	Seed int64
}

type product struct {
	name string
	key  string
}

// Generate produces fake wide-window license records and day-window churn
// records. A portion of the licenses are paid tiers with a prior trial start
// and a lastUpdated of Day, so conversion classification has something to
// find.
func Generate(opts Options) (licenses, churn []extract.RawRecord) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(seed)
	rng := rand.New(rand.NewSource(seed))

	if opts.Products <= 0 {
		opts.Products = 3
	}
	products := make([]product, opts.Products)
	for i := range products {
		name := faker.AppName()
		products[i] = product{name: name, key: slugify(name)}
	}

	day := opts.Day.Format("2006-01-02")
	for i := 0; i < opts.Licenses; i++ {
		p := products[rng.Intn(len(products))]
		company := faker.Company()
		email := faker.Email()
		seats := []string{"10 Users", "25 Users", "100 Users", "Unlimited Users"}[rng.Intn(4)]

		rec := extract.RawRecord{
			"addonName":            p.name,
			"addonKey":             p.key,
			"appEntitlementNumber": fmt.Sprintf("E-%d", faker.Number(100000, 999999)),
			"cloudSiteHostname":    faker.DomainName(),
			"tier":                 seats,
			"lastUpdated":          day,
			"contactDetails": map[string]interface{}{
				"company": company,
				"technicalContact": map[string]interface{}{
					"name":  faker.Name(),
					"email": email,
				},
			},
		}

		// Cycle the license mix so every fixture set contains trials,
		// organic paid licenses, and converted trials.
		switch i % 3 {
		case 0:
			rec["licenseType"] = "EVALUATION"
		case 1:
			rec["licenseType"] = "COMMERCIAL"
		default:
			// A converted trial: paid tier with a recorded trial start
			// inside the lookback window.
			rec["licenseType"] = "COMMERCIAL"
			trialStart := opts.Day.AddDate(0, 0, -rng.Intn(45)-1)
			rec["latestEvaluationStartDate"] = trialStart.Format("2006-01-02")
		}
		licenses = append(licenses, rec)
	}

	for i := 0; i < opts.Churn; i++ {
		p := products[rng.Intn(len(products))]
		churn = append(churn, extract.RawRecord{
			"addonKey":     p.key,
			"feedbackType": []string{"uninstall", "unsubscribe", "disable"}[rng.Intn(3)],
			"email":        faker.Email(),
			"fullName":     faker.Name(),
		})
	}
	return licenses, churn
}

// WriteDir writes generated fixtures into dir as JSON files.
func WriteDir(dir string, licenses, churn []extract.RawRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fixtures dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, LicensesFile), licenses); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, ChurnFile), churn)
}

// ReadDir loads fixtures previously written by WriteDir. A missing churn
// file yields zero churn records, matching a degraded feed.
func ReadDir(dir string) (licenses, churn []extract.RawRecord, err error) {
	licenses, err = readJSON(filepath.Join(dir, LicensesFile))
	if err != nil {
		return nil, nil, err
	}
	churn, err = readJSON(filepath.Join(dir, ChurnFile))
	if os.IsNotExist(err) {
		return licenses, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return licenses, churn, nil
}

func writeJSON(path string, records []extract.RawRecord) error {
	if records == nil {
		records = []extract.RawRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string) ([]extract.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []extract.RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

func slugify(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	return string(out)
}
