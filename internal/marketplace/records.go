package marketplace

import "github.com/emberline/marketpulse/internal/extract"

// Wrapper keys observed across marketplace API versions. A list payload may
// arrive bare, under one of these keys, or one level deeper inside a
// container object.
var (
	listKeys      = []string{"licenses", "items", "data", "results", "values"}
	containerKeys = []string{"content", "page", "paging", "_embedded"}

	// Fields that identify a bare single-record payload.
	recordKeys = []string{"licenseId", "appName", "addonName", "customer", "evaluationStartDate"}
)

// extractItems digs the record list out of whatever shape the export
// endpoint returned. Unrecognized shapes yield an empty list, not an error;
// the caller decides whether an empty source is fatal.
func extractItems(payload interface{}) []extract.RawRecord {
	if items := asRecords(payload); items != nil {
		return items
	}

	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil
	}

	for _, key := range listKeys {
		if items := asRecords(obj[key]); items != nil {
			return items
		}
	}
	for _, key := range containerKeys {
		inner, ok := obj[key].(map[string]interface{})
		if !ok {
			continue
		}
		for _, k2 := range listKeys {
			if items := asRecords(inner[k2]); items != nil {
				return items
			}
		}
	}

	// Single-record fallback.
	for _, key := range recordKeys {
		if _, ok := obj[key]; ok {
			return []extract.RawRecord{obj}
		}
	}
	return nil
}

// asRecords converts a decoded JSON array into records, keeping only map
// elements. Returns nil when v is not an array.
func asRecords(v interface{}) []extract.RawRecord {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]extract.RawRecord, 0, len(list))
	for _, el := range list {
		if rec, ok := el.(map[string]interface{}); ok {
			out = append(out, rec)
		}
	}
	return out
}

// nextURL normalizes a "next" reference that may be a bare string or an
// object carrying url/href.
func nextURL(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if s, ok := t["url"].(string); ok {
			return s
		}
		if s, ok := t["href"].(string); ok {
			return s
		}
	}
	return ""
}

// bodyNext finds a next-page reference inside a response body, checking the
// link containers different API versions use.
func bodyNext(payload interface{}) string {
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"_links", "links", "page", "paging"} {
		inner, ok := obj[key].(map[string]interface{})
		if !ok {
			continue
		}
		if u := nextURL(inner["next"]); u != "" {
			return u
		}
		if u := nextURL(inner["nextPage"]); u != "" {
			return u
		}
	}
	return ""
}
