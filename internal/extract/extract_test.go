package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	rec := RawRecord{
		"addonName": "Jira Plugin",
		"contactDetails": map[string]interface{}{
			"company": "Acme Corp",
			"technicalContact": map[string]interface{}{
				"email": "jane@acme.com",
			},
		},
		"tier": "10 Users",
	}

	tests := []struct {
		name string
		path string
		want interface{}
	}{
		{"top level", "addonName", "Jira Plugin"},
		{"nested", "contactDetails.company", "Acme Corp"},
		{"deeply nested", "contactDetails.technicalContact.email", "jane@acme.com"},
		{"missing key", "contactDetails.billingContact.email", nil},
		{"non-map intermediate", "tier.something.deeper", nil},
		{"empty path segment", "contactDetails..company", nil},
		{"absent top level", "nope", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Get(rec, tt.path))
		})
	}
}

func TestGet_NilRecord(t *testing.T) {
	assert.Nil(t, Get(nil, "a.b"))
}

func TestFirst(t *testing.T) {
	assert.Equal(t, "b", First("", "  ", "b", "c"))
	assert.Equal(t, "trimmed", First(nil, "  trimmed  "))
	assert.Equal(t, 42, First(nil, "", 42))
	assert.Nil(t, First(nil, "", []interface{}{}, map[string]interface{}{}))
	assert.Nil(t, First())
}

func TestFirstString(t *testing.T) {
	// Non-string hits are skipped rather than stringified.
	assert.Equal(t, "x", FirstString(42, map[string]interface{}{"a": 1}, "x"))
	assert.Equal(t, "", FirstString(nil, ""))
}

func TestFirstPath(t *testing.T) {
	rec := RawRecord{
		"app": map[string]interface{}{"name": "Confluence Helper"},
	}
	assert.Equal(t, "Confluence Helper", FirstPath(rec, "addonName", "app.name", "appName"))
	assert.Nil(t, FirstPath(rec, "addonKey", "app.key"))
	assert.Equal(t, "Confluence Helper", FirstPathString(rec, "addonName", "app.name"))
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "acme.com", EmailDomain("jane@acme.com"))
	assert.Equal(t, "", EmailDomain("not-an-email"))
	assert.Equal(t, "", EmailDomain("trailing@"))
	assert.Equal(t, "", EmailDomain(""))
}
