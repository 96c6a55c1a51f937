package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenyears/premium-api/internal/pkg/billing"
	"github.com/goldenyears/premium-api/internal/pkg/principal"
)

type fakeVerifier struct {
	tokens map[string]principal.Principal
}

func (v *fakeVerifier) Verify(_ context.Context, idToken string) (principal.Principal, error) {
	p, ok := v.tokens[idToken]
	if !ok {
		return principal.Principal{}, billing.ErrUnauthenticated
	}
	return p, nil
}

func callableRequest(t *testing.T, body, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", "/createSubscription", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeCallableError(t *testing.T, rec *httptest.ResponseRecorder) callableError {
	t.Helper()
	var resp struct {
		Error callableError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestCreateSubscription_MissingTokenRejected(t *testing.T) {
	c := NewCallable(nil, &fakeVerifier{tokens: map[string]principal.Principal{}})

	rec := httptest.NewRecorder()
	c.CreateSubscription(rec, callableRequest(t, `{"data":{"plan":"premium-monthly"}}`, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeCallableError(t, rec).Status)
}

func TestCreateSubscription_UnknownTokenRejected(t *testing.T) {
	c := NewCallable(nil, &fakeVerifier{tokens: map[string]principal.Principal{}})

	rec := httptest.NewRecorder()
	c.CreateSubscription(rec, callableRequest(t, `{"data":{"plan":"premium-monthly"}}`, "bogus"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeCallableError(t, rec).Status)
}

func TestCreateSubscription_MissingEnvelopeRejected(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]principal.Principal{
		"tok": {UID: "user-1", Email: "user@example.com"},
	}}
	c := NewCallable(nil, verifier)

	for _, body := range []string{`{}`, `not json`, `{"data":`} {
		rec := httptest.NewRecorder()
		c.CreateSubscription(rec, callableRequest(t, body, "tok"))

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, "INVALID_ARGUMENT", decodeCallableError(t, rec).Status, "body %q", body)
	}
}

func TestCancelSubscription_MissingTokenRejected(t *testing.T) {
	c := NewCallable(nil, &fakeVerifier{tokens: map[string]principal.Principal{}})

	rec := httptest.NewRecorder()
	c.CancelSubscription(rec, callableRequest(t, `{"data":{"subscriptionId":"sub_1"}}`, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePaymentMethod_MissingTokenRejected(t *testing.T) {
	c := NewCallable(nil, &fakeVerifier{tokens: map[string]principal.Principal{}})

	rec := httptest.NewRecorder()
	c.UpdatePaymentMethod(rec, callableRequest(t, `{"data":{"paymentMethodId":"pm_1"}}`, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteTaxonomyError_StatusMapping(t *testing.T) {
	cases := []struct {
		err        error
		httpStatus int
		status     string
	}{
		{billing.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{billing.ErrForbidden, http.StatusForbidden, "PERMISSION_DENIED"},
		{billing.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{billing.ErrPlanInvalid, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{billing.ErrValidation, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{billing.ErrProviderTimeout, http.StatusGatewayTimeout, "DEADLINE_EXCEEDED"},
		{billing.ErrProvider, http.StatusBadGateway, "UNAVAILABLE"},
		{context.Canceled, http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeTaxonomyError(rec, tc.err)
		assert.Equal(t, tc.httpStatus, rec.Code, "error %v", tc.err)
		assert.Equal(t, tc.status, decodeCallableError(t, rec).Status, "error %v", tc.err)
	}
}
