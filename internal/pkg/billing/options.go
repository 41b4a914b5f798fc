package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/env"
)

// ErrMissingAPIKey is a fatal configuration error.
var ErrMissingAPIKey = errors.New("STRIPE_API_KEY is not configured")

// TrialOverride forces the trial of new subscriptions in debug mode: end it
// right away (Now) or let it run for Days days.
type TrialOverride struct {
	Now  bool
	Days int
}

// IsSet reports whether an override is configured.
func (t TrialOverride) IsSet() bool {
	return t.Now || t.Days > 0
}

// Apply writes the override into subscription params.
func (t TrialOverride) Apply(params *SubscriptionParams, now time.Time) {
	switch {
	case t.Now:
		params.TrialEndNow = true
		params.TrialEnd = nil
	case t.Days > 0:
		end := now.AddDate(0, 0, t.Days)
		params.TrialEnd = &end
		params.TrialEndNow = false
	}
}

// ParseTrialOverride accepts "", "now" or a positive number of days.
func ParseTrialOverride(raw string) (TrialOverride, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "none":
		return TrialOverride{}, nil
	case "now":
		return TrialOverride{Now: true}, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 {
		return TrialOverride{}, fmt.Errorf("invalid debug trial period %q: want \"now\" or a positive number of days", raw)
	}
	return TrialOverride{Days: days}, nil
}

// Options configure the billing module.
type Options struct {
	APIKey                string
	DefaultPlan           string
	AutoCreateCustomer    bool
	UserMustHavePlan      bool
	AddCardView           string
	OnlyOneCard           bool
	DebugTrialPeriod      TrialOverride
	SendInvoiceEmail      bool
	SendTrialWillEndEmail bool
	WebhookValidateEvent  bool
	WebhookSecret         string

	// Debug enables debug-only behavior such as DebugTrialPeriod. It must
	// only be true for development deployments.
	Debug bool
}

// DefaultOptions returns the option defaults without an API key.
func DefaultOptions() Options {
	return Options{
		AutoCreateCustomer:    true,
		SendInvoiceEmail:      true,
		SendTrialWillEndEmail: true,
	}
}

// OptionsFromEnv reads STRIPE_* variables on top of DefaultOptions.
func OptionsFromEnv() (Options, error) {
	o := DefaultOptions()
	o.APIKey = strings.TrimSpace(env.GetEnv("STRIPE_API_KEY", ""))
	o.DefaultPlan = strings.TrimSpace(env.GetEnv("STRIPE_DEFAULT_PLAN", ""))
	o.AddCardView = strings.TrimSpace(env.GetEnv("STRIPE_ADD_CARD_VIEW", ""))
	o.WebhookSecret = strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	o.Debug = env.IsDev()

	var err error
	bools := []struct {
		key  string
		dest *bool
	}{
		{"STRIPE_AUTO_CREATE_CUSTOMER", &o.AutoCreateCustomer},
		{"STRIPE_USER_MUST_HAVE_PLAN", &o.UserMustHavePlan},
		{"STRIPE_ONLY_ONE_CARD", &o.OnlyOneCard},
		{"STRIPE_SEND_INVOICE_EMAIL", &o.SendInvoiceEmail},
		{"STRIPE_SEND_TRIAL_WILL_END_EMAIL", &o.SendTrialWillEndEmail},
		{"STRIPE_WEBHOOK_VALIDATE_EVENT", &o.WebhookValidateEvent},
	}
	for _, b := range bools {
		if *b.dest, err = envBool(b.key, *b.dest); err != nil {
			return o, err
		}
	}

	if o.DebugTrialPeriod, err = ParseTrialOverride(env.GetEnv("STRIPE_DEBUG_TRIAL_PERIOD", "")); err != nil {
		return o, err
	}
	return o, nil
}

// Validate reports configuration errors that must stop startup.
func (o Options) Validate() error {
	if strings.TrimSpace(o.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid boolean for %s: %q", key, raw)
	}
	return v, nil
}
