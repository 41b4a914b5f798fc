package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

var ErrIncompleteCardForm = errors.New("billing: card form needs a token or number, expiry and cvc")

// CardForm is the submitted add-card form. A client-side token wins over the
// raw card fields.
type CardForm struct {
	Token    string `form:"stripeToken"`
	Number   string `form:"card_number" validate:"required,numeric,min=12,max=19"`
	ExpMonth string `form:"card_exp_month" validate:"required,numeric,min=1,max=2"`
	ExpYear  string `form:"card_exp_year" validate:"required,numeric,min=2,max=4"`
	CVC      string `form:"card_cvc" validate:"required,numeric,min=3,max=4"`
	Name     string `form:"card_name" validate:"max=150"`
}

func (f *CardForm) normalize() {
	f.Token = strings.TrimSpace(f.Token)
	f.Number = strings.ReplaceAll(strings.TrimSpace(f.Number), " ", "")
	f.ExpMonth = strings.TrimSpace(f.ExpMonth)
	f.ExpYear = strings.TrimSpace(f.ExpYear)
	f.CVC = strings.TrimSpace(f.CVC)
	f.Name = strings.TrimSpace(f.Name)
}

// Source validates the form and turns it into a CardSource.
func (f CardForm) Source() (CardSource, error) {
	f.normalize()
	if f.Token != "" {
		return CardSource{Token: f.Token}, nil
	}
	if err := validator.New().Struct(f); err != nil {
		return CardSource{}, errors.Join(ErrIncompleteCardForm, err)
	}
	return CardSource{Details: &CardDetails{
		Number:   f.Number,
		ExpMonth: f.ExpMonth,
		ExpYear:  f.ExpYear,
		CVC:      f.CVC,
		Name:     f.Name,
	}}, nil
}

// AddCardFromForm is AddCard fed by a submitted form.
func (s *Service) AddCardFromForm(ctx context.Context, user *models.User, form CardForm) (*Card, error) {
	src, err := form.Source()
	if err != nil {
		return nil, err
	}
	return s.AddCard(ctx, user, src)
}
