package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/env"
)

func TestParseTrialOverride(t *testing.T) {
	tests := []struct {
		in      string
		want    TrialOverride
		wantErr bool
	}{
		{in: "", want: TrialOverride{}},
		{in: "none", want: TrialOverride{}},
		{in: " NOW ", want: TrialOverride{Now: true}},
		{in: "14", want: TrialOverride{Days: 14}},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTrialOverride(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTrialOverrideApply(t *testing.T) {
	now := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	params := SubscriptionParams{Plan: "gold"}
	TrialOverride{Now: true}.Apply(&params, now)
	assert.True(t, params.TrialEndNow)
	assert.Nil(t, params.TrialEnd)

	params = SubscriptionParams{Plan: "gold", TrialEndNow: true}
	TrialOverride{Days: 3}.Apply(&params, now)
	assert.False(t, params.TrialEndNow)
	require.NotNil(t, params.TrialEnd)
	assert.Equal(t, now.AddDate(0, 0, 3), *params.TrialEnd)
}

func TestOptionsFromEnv(t *testing.T) {
	t.Cleanup(func() { env.Env = nil })
	env.Env = map[string]string{
		"APP_ENV":                       "dev",
		"STRIPE_API_KEY":                "sk_test_123",
		"STRIPE_DEFAULT_PLAN":           "free",
		"STRIPE_AUTO_CREATE_CUSTOMER":   "false",
		"STRIPE_ONLY_ONE_CARD":          "true",
		"STRIPE_DEBUG_TRIAL_PERIOD":     "now",
		"STRIPE_WEBHOOK_VALIDATE_EVENT": "1",
	}

	o, err := OptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", o.APIKey)
	assert.Equal(t, "free", o.DefaultPlan)
	assert.False(t, o.AutoCreateCustomer)
	assert.True(t, o.OnlyOneCard)
	assert.True(t, o.WebhookValidateEvent)
	assert.True(t, o.SendInvoiceEmail)
	assert.True(t, o.Debug)
	assert.Equal(t, TrialOverride{Now: true}, o.DebugTrialPeriod)
	assert.NoError(t, o.Validate())
}

func TestOptionsFromEnvRejectsBadValues(t *testing.T) {
	t.Cleanup(func() { env.Env = nil })

	env.Env = map[string]string{"STRIPE_ONLY_ONE_CARD": "maybe"}
	_, err := OptionsFromEnv()
	assert.Error(t, err)

	env.Env = map[string]string{"STRIPE_DEBUG_TRIAL_PERIOD": "forever"}
	_, err = OptionsFromEnv()
	assert.Error(t, err)
}

func TestValidateRequiresAPIKey(t *testing.T) {
	assert.ErrorIs(t, DefaultOptions().Validate(), ErrMissingAPIKey)
}
