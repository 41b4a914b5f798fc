package mail

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
)

type captured struct {
	to, subject, body string
}

func newCapturingMailer(t *testing.T) (*TemplateMailer, *[]captured) {
	t.Helper()
	m, err := NewTemplateMailer()
	require.NoError(t, err)
	var sent []captured
	m.WithSender(func(to, subject, body string) error {
		sent = append(sent, captured{to: to, subject: subject, body: body})
		return nil
	})
	return m, &sent
}

func TestInvoiceMail(t *testing.T) {
	m, sent := newCapturingMailer(t)
	user := &models.User{Name: "alice", Email: "alice@example.com"}
	inv := &billing.Invoice{
		ID:       "in_1",
		Currency: "eur",
		Total:    decimal.New(1999, -2),
		Lines:    []billing.InvoiceLine{{Description: "Gold plan", Amount: decimal.New(1999, -2)}},
	}

	require.NoError(t, m.SendTemplate(context.Background(), user.Email, billing.TemplateInvoice, billing.InvoiceEmailData(user, inv)))
	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "alice@example.com", mail.to)
	assert.Equal(t, "Your invoice", mail.subject)
	assert.Contains(t, mail.body, "Hello alice")
	assert.Contains(t, mail.body, "Gold plan")
	assert.Contains(t, mail.body, "19.99 EUR")
}

func TestTrialWillEndMail(t *testing.T) {
	m, sent := newCapturingMailer(t)
	user := &models.User{Name: "bob", Email: "bob@example.com"}

	require.NoError(t, m.SendTemplate(context.Background(), user.Email, billing.TemplateTrialWillEnd, map[string]any{"User": user}))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].body, "Hello bob")
}

func TestUnknownTemplate(t *testing.T) {
	m, sent := newCapturingMailer(t)
	assert.Error(t, m.SendTemplate(context.Background(), "x@example.com", "billing/unknown", nil))
	assert.Empty(t, *sent)
}
