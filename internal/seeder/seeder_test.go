package seeder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/marketpulse/internal/convert"
	"github.com/emberline/marketpulse/internal/normalize"
)

func TestGenerate(t *testing.T) {
	day := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	licenses, churn := Generate(Options{
		Day:      day,
		Products: 2,
		Licenses: 50,
		Churn:    10,
		Seed:     1,
	})

	require.Len(t, licenses, 50)
	require.Len(t, churn, 10)

	// Every record must survive normalization with an identifier.
	for _, rec := range licenses {
		e := normalize.License(rec)
		assert.NotEmpty(t, e.DedupID)
		assert.NotEmpty(t, e.ProductKey)
	}

	// The generator plants converted trials; classification must find some.
	conversions := convert.Classify(licenses, day, 60)
	assert.NotEmpty(t, conversions)
}

func TestGenerate_Reproducible(t *testing.T) {
	opts := Options{
		Day:      time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		Products: 2,
		Licenses: 5,
		Churn:    2,
		Seed:     42,
	}
	l1, c1 := Generate(opts)
	l2, c2 := Generate(opts)
	assert.Equal(t, l1, l2)
	assert.Equal(t, c1, c2)
}

func TestWriteAndReadDir(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	licenses, churn := Generate(Options{Day: day, Products: 1, Licenses: 3, Churn: 2, Seed: 7})

	require.NoError(t, WriteDir(dir, licenses, churn))

	gotLicenses, gotChurn, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, gotLicenses, 3)
	assert.Len(t, gotChurn, 2)
}

func TestReadDir_MissingChurnDegrades(t *testing.T) {
	dir := t.TempDir()
	licenses, _ := Generate(Options{Day: time.Now().UTC(), Products: 1, Licenses: 2, Seed: 7})
	require.NoError(t, WriteDir(dir, licenses, nil))
	require.NoError(t, os.Remove(filepath.Join(dir, ChurnFile)))

	gotLicenses, gotChurn, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, gotLicenses, 2)
	assert.Empty(t, gotChurn)
}

func TestReadDir_MissingLicensesIsError(t *testing.T) {
	_, _, err := ReadDir(t.TempDir())
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "jira-plugin", slugify("Jira Plugin"))
	assert.Equal(t, "app2go", slugify("App2Go!"))
}
