package stripeprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
)

var (
	ErrMalformedEvent   = errors.New("stripe: malformed event payload")
	ErrInvalidSignature = errors.New("stripe: invalid webhook signature")
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// ParseEvent decodes a webhook body. The body must carry an id and a type.
func ParseEvent(payload []byte) (*billing.Event, error) {
	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", ErrMalformedEvent)
	}
	return fromStripeEvent(&ev)
}

// VerifySignature checks the Stripe-Signature header against secret.
func VerifySignature(payload []byte, header, secret string) error {
	if err := webhook.ValidatePayload(payload, header, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// fromStripeEvent decodes the embedded object of invoice.* and
// customer.subscription.* events.
func fromStripeEvent(ev *stripe.Event) (*billing.Event, error) {
	out := &billing.Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	out.Raw = ev.Data.Raw

	switch {
	case strings.HasPrefix(out.Type, "invoice."):
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: invoice: %v", ErrMalformedEvent, err)
		}
		out.Invoice = toInvoice(&inv)
	case strings.HasPrefix(out.Type, "customer.subscription."):
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", ErrMalformedEvent, err)
		}
		out.Subscription = toSubscription(&sub)
	}
	return out, nil
}
