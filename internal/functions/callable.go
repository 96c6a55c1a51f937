// Package functions exposes the three subscription operations as
// Firebase-callable-style HTTP functions. They share the billing service with
// the HTTP server; only the envelope differs: requests arrive as
// {"data": {...}} and responses leave as {"result": {...}} or
// {"error": {"status": CODE, "message": ...}}.
package functions

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/goldenyears/premium-api/internal/pkg/auth"
	"github.com/goldenyears/premium-api/internal/pkg/billing"
	"github.com/goldenyears/premium-api/internal/pkg/principal"
)

const callTimeout = 25 * time.Second

// Callable serves the callable-protocol variants of the subscription
// operations.
type Callable struct {
	svc      *billing.Service
	verifier auth.TokenVerifier
}

func NewCallable(svc *billing.Service, verifier auth.TokenVerifier) *Callable {
	return &Callable{svc: svc, verifier: verifier}
}

type callableEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"result": result})
}

func writeError(w http.ResponseWriter, httpStatus int, status, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": callableError{Status: status, Message: message},
	})
}

// writeTaxonomyError maps billing errors onto callable status codes.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "User must be logged in")
	case errors.Is(err, billing.ErrForbidden):
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "Not allowed")
	case errors.Is(err, billing.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, billing.ErrPlanInvalid), errors.Is(err, billing.ErrValidation):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request")
	case errors.Is(err, billing.ErrProviderTimeout):
		writeError(w, http.StatusGatewayTimeout, "DEADLINE_EXCEEDED", "Payment provider timed out")
	case errors.Is(err, billing.ErrProvider):
		writeError(w, http.StatusBadGateway, "UNAVAILABLE", "Payment provider rejected the request")
	default:
		log.Printf("functions: unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}

// authenticate verifies the bearer token and returns the principal. Failures
// are uniform UNAUTHENTICATED regardless of cause.
func (f *Callable) authenticate(ctx context.Context, r *http.Request) (principal.Principal, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return principal.Principal{}, billing.ErrUnauthenticated
	}
	return f.verifier.Verify(ctx, strings.TrimSpace(header[7:]))
}

func decodeData(r *http.Request, into interface{}) error {
	var env callableEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return billing.ErrValidation
	}
	if len(env.Data) == 0 {
		return billing.ErrValidation
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return billing.ErrValidation
	}
	return nil
}

func (f *Callable) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	p, err := f.authenticate(ctx, r)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := decodeData(r, &req); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	result, err := f.svc.CreateSubscription(ctx, p, req.Plan)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeResult(w, map[string]interface{}{
		"subscription":  result.SubscriptionID,
		"paymentIntent": result.ClientSecret,
		"customer":      result.CustomerID,
		"ephemeralKey":  result.EphemeralKey,
	})
}

func (f *Callable) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	p, err := f.authenticate(ctx, r)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	var req struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	if err := decodeData(r, &req); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	sub, err := f.svc.CancelSubscription(ctx, p, req.SubscriptionID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeResult(w, map[string]interface{}{"success": true, "subscription": sub})
}

func (f *Callable) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	p, err := f.authenticate(ctx, r)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	var req struct {
		PaymentMethodID string `json:"paymentMethodId"`
	}
	if err := decodeData(r, &req); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	if err := f.svc.UpdateDefaultPaymentMethod(ctx, p, req.PaymentMethodID); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeResult(w, map[string]interface{}{"success": true})
}
