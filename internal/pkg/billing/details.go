package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

// SyncSubscriptionDetails overwrites the user's subscription fields with the
// state of sub and saves the user. A nil sub clears the subscription id, the
// plan and the next charge date. A sub without a plan keeps the user's
// current plan and is rejected when there is none. Every code path that
// changes subscription state goes through here.
func (s *Service) SyncSubscriptionDetails(ctx context.Context, user *models.User, sub *Subscription) error {
	if sub != nil && sub.PlanID == "" && !user.HasPlan() {
		return fmt.Errorf("subscription %s: %w", sub.ID, ErrEmptyPlan)
	}

	if sub == nil {
		user.BillingSubscriptionID = nil
		user.PlanName = nil
		user.PlanNextChargeAt = nil
	} else {
		id := sub.ID
		user.BillingSubscriptionID = &id
		if plan := sub.PlanID; plan != "" {
			user.PlanName = &plan
		}
		user.PlanTrialEnded = trialEnded(sub.TrialEnd, s.now())
		if user.PlanTrialEnded {
			user.PlanNextChargeAt = copyTime(sub.CurrentPeriodEnd)
		} else {
			user.PlanNextChargeAt = copyTime(sub.TrialEnd)
		}
	}

	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user %d: %w", user.ID, err)
	}
	return nil
}

// recordCharge stores the outcome of an invoice payment attempt. On success
// the next charge is the subscription's period end, on failure the
// provider's next retry.
func (s *Service) recordCharge(ctx context.Context, l *lookup, inv *Invoice, successful bool) error {
	user := l.user
	sub, err := l.getSubscription(ctx)
	if err != nil {
		return err
	}
	if sub != nil && sub.TrialEnd != nil {
		user.PlanTrialEnded = trialEnded(sub.TrialEnd, s.now())
	}

	chargedAt := inv.Date
	user.PlanLastChargedAt = &chargedAt
	user.PlanLastChargeAmount = decimal.NewNullDecimal(inv.Total)
	user.PlanLastChargeSuccessful = successful
	switch {
	case !successful:
		user.PlanNextChargeAt = copyTime(inv.NextPaymentAttempt)
	case sub != nil:
		user.PlanNextChargeAt = copyTime(sub.CurrentPeriodEnd)
	}

	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user %d: %w", user.ID, err)
	}
	return nil
}

// trialEnded is true without a trial end or when the trial end has passed.
func trialEnded(trialEnd *time.Time, now time.Time) bool {
	return trialEnd == nil || trialEnd.Before(now)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
