package stripeprovider

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const invoicePayload = `{
	"id": "evt_1",
	"object": "event",
	"type": "invoice.payment_succeeded",
	"data": {"object": {
		"id": "in_1",
		"object": "invoice",
		"customer": "cus_1",
		"subscription": "sub_1",
		"currency": "eur",
		"total": 1999,
		"created": 1714564800,
		"next_payment_attempt": null,
		"lines": {"object": "list", "data": [
			{"id": "il_1", "object": "line_item", "description": "1 x Gold", "amount": 1999}
		]}
	}}
}`

func TestParseEventInvoice(t *testing.T) {
	ev, err := ParseEvent([]byte(invoicePayload))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "invoice.payment_succeeded", ev.Type)
	require.NotNil(t, ev.Invoice)
	assert.Nil(t, ev.Subscription)

	inv := ev.Invoice
	assert.Equal(t, "cus_1", inv.CustomerID)
	assert.Equal(t, "sub_1", inv.SubscriptionID)
	assert.Equal(t, "19.99", inv.Total.StringFixed(2))
	assert.Equal(t, int64(1714564800), inv.Date.Unix())
	assert.Nil(t, inv.NextPaymentAttempt)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "1 x Gold", inv.Lines[0].Description)
}

func TestParseEventInvoiceZeroDecimalCurrency(t *testing.T) {
	payload := strings.NewReplacer(`"eur"`, `"jpy"`, `1999`, `500`).Replace(invoicePayload)

	ev, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	require.NotNil(t, ev.Invoice)
	assert.Equal(t, "jpy", ev.Invoice.Currency)
	assert.Equal(t, "500", ev.Invoice.Total.String())
	require.Len(t, ev.Invoice.Lines, 1)
	assert.Equal(t, "500", ev.Invoice.Lines[0].Amount.String())
}

func TestMinorUnitAmount(t *testing.T) {
	assert.Equal(t, "19.99", minorUnitAmount(1999, "eur").StringFixed(2))
	assert.Equal(t, "19.99", minorUnitAmount(1999, "USD").StringFixed(2))
	assert.Equal(t, "500", minorUnitAmount(500, "jpy").String())
	assert.Equal(t, "12000", minorUnitAmount(12000, "krw").String())
	assert.Equal(t, "0", minorUnitAmount(0, "eur").String())
}

func TestParseEventSubscriptionWithPrice(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_1","object":"subscription","customer":{"id":"cus_1","object":"customer"},
		"trial_end":null,"current_period_end":1719835200,
		"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","quantity":1,"price":{"id":"price_gold","object":"price"}}]}
	}}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Subscription)
	assert.Equal(t, "cus_1", ev.Subscription.CustomerID)
	assert.Equal(t, "price_gold", ev.Subscription.PlanID)
	assert.Nil(t, ev.Subscription.TrialEnd)
}

func TestParseEventOtherTypesKeepRawOnly(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_3","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`))
	require.NoError(t, err)
	assert.Nil(t, ev.Invoice)
	assert.Nil(t, ev.Subscription)
	assert.NotEmpty(t, ev.Raw)
}

func TestParseEventRejectsMalformed(t *testing.T) {
	for _, payload := range []string{`not json`, `{"type":"invoice.payment_failed"}`, `{"id":"evt_1"}`} {
		_, err := ParseEvent([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformedEvent, payload)
	}
}

func signPayload(payload []byte, secret string, ts time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
	}).Header
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(invoicePayload)
	secret := "whsec_test"

	assert.NoError(t, VerifySignature(payload, signPayload(payload, secret, time.Now()), secret))
	assert.ErrorIs(t, VerifySignature(payload, signPayload(payload, "whsec_other", time.Now()), secret), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(payload, signPayload(payload, secret, time.Now().Add(-time.Hour)), secret), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(payload, "", secret), ErrInvalidSignature)
}
