package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackChannel_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello report", payload["text"])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL, 0)
	assert.Equal(t, "slack", ch.Type())
	assert.NoError(t, ch.Send(context.Background(), "hello report"))
}

func TestSlackChannel_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := NewSlackChannel(server.URL, 0).Send(context.Background(), "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestLogChannel_Send(t *testing.T) {
	ch := NewLogChannel(nil)
	assert.Equal(t, "log", ch.Type())
	assert.NoError(t, ch.Send(context.Background(), "hello"))
}

type stubChannel struct {
	err   error
	calls int
}

func (s *stubChannel) Send(ctx context.Context, text string) error {
	s.calls++
	return s.err
}

func (s *stubChannel) Type() string { return "stub" }

func TestMultiChannel_AllSucceed(t *testing.T) {
	a, b := &stubChannel{}, &stubChannel{}

	m := NewMultiChannel(a, b)
	assert.NoError(t, m.Send(context.Background(), "hello"))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

// One accepting channel is not enough: a webhook failure must surface even
// when the log channel took the report.
func TestMultiChannel_AnyFailureFailsDelivery(t *testing.T) {
	ok := &stubChannel{}
	bad := &stubChannel{err: errors.New("boom")}

	m := NewMultiChannel(bad, ok)
	err := m.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stub channel failed")
	// Every channel is still attempted.
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)
}
