package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, body)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newTestRouter(t *testing.T, p *fakePublisher) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, p, zaptest.NewLogger(t))
	return r
}

func postBilling(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/billing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestPostBilling_PublishesValidPayload(t *testing.T) {
	p := &fakePublisher{}
	h := newTestRouter(t, p)

	rec, out := postBilling(t, h, `{"user_id":"u1","number_of_items":2,"total_amount":19.99}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Message posted to billing queue", out["message"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, p.messages, 1)
	assert.JSONEq(t, `{"user_id":"u1","number_of_items":2,"total_amount":19.99}`, string(p.messages[0]))
}

func TestPostBilling_AcceptsStringNumbers(t *testing.T) {
	p := &fakePublisher{}
	h := newTestRouter(t, p)

	rec, _ := postBilling(t, h, `{"user_id":"20","number_of_items":"99","total_amount":"250"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, p.messages, 1)
	assert.JSONEq(t, `{"user_id":"20","number_of_items":"99","total_amount":"250"}`, string(p.messages[0]))
}

func TestPostBilling_DropsUnknownFields(t *testing.T) {
	p := &fakePublisher{}
	h := newTestRouter(t, p)

	rec, _ := postBilling(t, h, `{"user_id":"u1","number_of_items":1,"total_amount":5,"coupon":"FREE"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, p.messages, 1)
	assert.NotContains(t, string(p.messages[0]), "coupon")
}

func TestPostBilling_MissingFields(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		missing string
	}{
		{"empty object", `{}`, "user_id"},
		{"missing user_id", `{"number_of_items":2,"total_amount":19.99}`, "user_id"},
		{"missing number_of_items", `{"user_id":"u1","total_amount":19.99}`, "number_of_items"},
		{"missing total_amount", `{"user_id":"u1","number_of_items":2}`, "total_amount"},
		{"missing last two", `{"user_id":"u1"}`, "number_of_items"},
		{"null counts as missing", `{"user_id":null,"number_of_items":2,"total_amount":1}`, "user_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePublisher{}
			h := newTestRouter(t, p)

			rec, out := postBilling(t, h, tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Missing required field: "+tc.missing, out["error"])
			assert.Empty(t, p.messages)
		})
	}
}

func TestPostBilling_EmptyBody(t *testing.T) {
	p := &fakePublisher{}
	h := newTestRouter(t, p)

	rec, out := postBilling(t, h, ``)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No data provided", out["error"])
	assert.Empty(t, p.messages)
}

func TestPostBilling_InvalidJSON(t *testing.T) {
	p := &fakePublisher{}
	h := newTestRouter(t, p)

	rec, out := postBilling(t, h, `{"user_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", out["error"])
	assert.Empty(t, p.messages)
}

func TestPostBilling_PublishFailure(t *testing.T) {
	p := &fakePublisher{err: errors.New("failed to connect to RabbitMQ: dial tcp: connection refused")}
	h := newTestRouter(t, p)

	rec, out := postBilling(t, h, `{"user_id":"u1","number_of_items":2,"total_amount":19.99}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, out["error"], "connection refused")
}
