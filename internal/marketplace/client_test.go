package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:      baseURL,
		Username:     "vendor@example.com",
		APIToken:     "token-123",
		VendorID:     "42",
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
		PollDeadline: 200 * time.Millisecond,
	})
}

func TestLicensesExport_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/2/vendors/42/reporting/licenses/export", r.URL.Path)
		assert.Equal(t, "2024-02-10", r.URL.Query().Get("startDate"))
		assert.Equal(t, "start", r.URL.Query().Get("dateType"))
		assert.Equal(t, "true", r.URL.Query().Get("withDataInsights"))

		user, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "vendor@example.com", user)
		assert.Equal(t, "token-123", token)

		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"addonName": "Jira Plugin"},
			{"addonName": "Other App"},
		})
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).LicensesExport(context.Background(), day("2024-02-10"), day("2024-02-10"))
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "Jira Plugin", records[0]["addonName"])
}

func TestLicensesExport_WrapperShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"licenses wrapper", `{"licenses":[{"addonName":"A"}]}`, 1},
		{"items wrapper", `{"items":[{"addonName":"A"},{"addonName":"B"}]}`, 2},
		{"nested embedded container", `{"_embedded":{"values":[{"addonName":"A"}]}}`, 1},
		{"single record fallback", `{"licenseId":"L-1","addonName":"A"}`, 1},
		{"unrecognized shape degrades to empty", `{"unexpected":true}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			records, err := newTestClient(server.URL).LicensesExport(context.Background(), day("2024-02-10"), day("2024-02-10"))
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestLicenses_FollowsLinkHeaderPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/2/vendors/42/reporting/licenses":
			w.Header().Set("Link", "</page2>; rel=\"next\"")
			w.Write([]byte(`{"licenses":[{"addonName":"A"}]}`))
		case "/page2":
			w.Write([]byte(`{"licenses":[{"addonName":"B"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).Licenses(context.Background(), day("2024-02-10"), day("2024-02-10"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0]["addonName"])
	assert.Equal(t, "B", records[1]["addonName"])
}

func TestLicenses_FollowsBodyNextObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/next-page" {
			w.Write([]byte(`{"licenses":[{"addonName":"B"}]}`))
			return
		}
		w.Write([]byte(`{"licenses":[{"addonName":"A"}],"_links":{"next":{"href":"/next-page"}}}`))
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).Licenses(context.Background(), day("2024-02-10"), day("2024-02-10"))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestChurnEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/2/vendors/42/reporting/feedback/details/export", r.URL.Path)
		assert.ElementsMatch(t, []string{"uninstall", "unsubscribe", "disable"}, r.URL.Query()["type"])
		w.Write([]byte(`{"feedback":[{"addonKey":"jira-plugin","feedbackType":"uninstall"}]}`))
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).ChurnEvents(context.Background(), day("2024-02-10"), day("2024-02-10"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "uninstall", records[0]["feedbackType"])
}

func TestFetch_UpstreamErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.LicensesExport(context.Background(), day("2024-02-10"), day("2024-02-10"))
	assert.Error(t, err)

	_, err = c.ChurnEvents(context.Background(), day("2024-02-10"), day("2024-02-10"))
	assert.Error(t, err)
}

func TestTransactionsExport_CompletesAfterPolling(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/2/vendors/42/reporting/transactions/export/async":
			assert.Equal(t, http.MethodPost, r.Method)
			w.Write([]byte(`{"id":"exp-1"}`))
		case "/rest/2/vendors/42/reporting/transactions/export/async/exp-1/status":
			polls++
			if polls < 3 {
				w.Write([]byte(`{"status":"IN_PROGRESS"}`))
			} else {
				w.Write([]byte(`{"status":"COMPLETED"}`))
			}
		case "/rest/2/vendors/42/reporting/transactions/export/async/exp-1/download":
			w.Write([]byte(`{"data":[{"transactionId":"T-1"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).TransactionsExport(context.Background(), day("2024-02-10"), day("2024-02-10"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T-1", records[0]["transactionId"])
	assert.GreaterOrEqual(t, polls, 3)
}

func TestTransactionsExport_DeadlineDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/2/vendors/42/reporting/transactions/export/async":
			w.Write([]byte(`{"id":"exp-1"}`))
		default:
			w.Write([]byte(`{"status":"IN_PROGRESS"}`))
		}
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).TransactionsExport(context.Background(), day("2024-02-10"), day("2024-02-10"))
	assert.ErrorIs(t, err, ErrExportTimeout)
}

func TestTransactionsExport_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/2/vendors/42/reporting/transactions/export/async":
			w.Write([]byte(`{"id":"exp-1"}`))
		default:
			w.Write([]byte(`{"status":"FAILED"}`))
		}
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).TransactionsExport(context.Background(), day("2024-02-10"), day("2024-02-10"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExportTimeout)
}

func TestHeaderNext(t *testing.T) {
	h := http.Header{}
	h.Add("Link", `<https://example.com/p2>; rel="next"`)
	assert.Equal(t, "https://example.com/p2", headerNext(h))

	h = http.Header{}
	h.Add("Link", `<https://example.com/p1>; rel="prev"`)
	assert.Equal(t, "", headerNext(h))
}
