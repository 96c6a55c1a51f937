package billing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stripe/stripe-go/v76"
)

func TestIsAlreadyAttached(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "dedicated code",
			err:  &stripe.Error{Code: "payment_method_already_attached"},
			want: true,
		},
		{
			name: "generic code with message detail",
			err: &stripe.Error{
				Type: stripe.ErrorTypeInvalidRequest,
				Msg:  "The payment method you provided has already been attached to a customer.",
			},
			want: true,
		},
		{
			name: "unrelated stripe error",
			err:  &stripe.Error{Code: stripe.ErrorCodeResourceMissing, Msg: "No such payment method"},
			want: false,
		},
		{
			name: "wrapped stripe error",
			err:  fmt.Errorf("attach: %w", &stripe.Error{Code: "payment_method_already_attached"}),
			want: true,
		},
		{
			name: "non-stripe error",
			err:  errors.New("connection reset"),
			want: false,
		},
	}
	for _, tt := range tests {
		if got := isAlreadyAttached(tt.err); got != tt.want {
			t.Fatalf("%s: isAlreadyAttached() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
