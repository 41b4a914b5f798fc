package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

var (
	ErrEmptyPlan       = errors.New("billing: plan is required")
	ErrEmptyCardSource = errors.New("billing: card token or card details are required")
)

// Service manages customers, cards and subscriptions of local users and keeps
// their billing fields in sync with the provider.
type Service struct {
	provider Provider
	users    UserStore
	opts     Options
	now      func() time.Time
}

// NewService creates a billing service.
func NewService(provider Provider, users UserStore, opts Options) *Service {
	return &Service{
		provider: provider,
		users:    users,
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for trial computations.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Options returns the configuration the service runs with.
func (s *Service) Options() Options {
	return s.opts
}

// Provider returns the payment API client.
func (s *Service) Provider() Provider {
	return s.provider
}

// CreateCustomer creates a remote customer for user, links it and, when a
// default plan is configured, subscribes the user to it.
func (s *Service) CreateCustomer(ctx context.Context, user *models.User) (*Customer, error) {
	return s.createCustomer(ctx, s.lookupFor(user))
}

func (s *Service) createCustomer(ctx context.Context, l *lookup) (*Customer, error) {
	cust, err := s.provider.CreateCustomer(ctx, l.user.Email)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	id := cust.ID
	l.user.BillingCustomerID = &id
	if err := s.users.Save(ctx, l.user); err != nil {
		return nil, fmt.Errorf("save user %d: %w", l.user.ID, err)
	}
	l.setCustomer(cust)
	log.Infof("[Billing] created customer %s for user %d", cust.ID, l.user.ID)

	if s.opts.DefaultPlan != "" {
		if _, err := s.subscribe(ctx, l, s.opts.DefaultPlan, 1); err != nil {
			return cust, err
		}
	}
	return cust, nil
}

// AddCard attaches a card to the user's customer. With OnlyOneCard the
// current default card is deleted first.
func (s *Service) AddCard(ctx context.Context, user *models.User, src CardSource) (*Card, error) {
	if strings.TrimSpace(src.Token) == "" && src.Details == nil {
		return nil, ErrEmptyCardSource
	}

	l := s.lookupFor(user)
	cust, err := l.getCustomer(ctx)
	if err != nil {
		return nil, err
	}

	if s.opts.OnlyOneCard && cust.DefaultCardID != "" {
		if err := s.provider.DeleteCard(ctx, cust.ID, cust.DefaultCardID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("delete previous card: %w", err)
		}
		cust.DefaultCardID = ""
	}

	card, err := s.provider.AttachCard(ctx, cust.ID, src)
	if err != nil {
		return nil, fmt.Errorf("attach card: %w", err)
	}
	if cust.DefaultCardID == "" {
		cust.DefaultCardID = card.ID
	}

	user.HasPaymentCard = true
	if err := s.users.Save(ctx, user); err != nil {
		return card, fmt.Errorf("save user %d: %w", user.ID, err)
	}

	if !user.HasPlan() && s.opts.UserMustHavePlan && s.opts.DefaultPlan != "" {
		if _, err := s.subscribe(ctx, l, s.opts.DefaultPlan, 1); err != nil {
			return card, err
		}
	}
	return card, nil
}

// RemoveCard deletes cardID, or the default card when cardID is empty. A card
// that does not exist remotely is treated as already removed.
func (s *Service) RemoveCard(ctx context.Context, user *models.User, cardID string) error {
	l := s.lookupFor(user)
	cust, err := l.getCustomer(ctx)
	if errors.Is(err, ErrNoCustomer) {
		return nil
	}
	if err != nil {
		return err
	}

	if cardID == "" {
		cardID = cust.DefaultCardID
	}
	if cardID == "" {
		return nil
	}

	cards, err := s.provider.ListCards(ctx, cust.ID)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}
	if !containsCard(cards, cardID) {
		return nil
	}

	if err := s.provider.DeleteCard(ctx, cust.ID, cardID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	if cust.DefaultCardID == cardID {
		cust.DefaultCardID = ""
	}

	if len(cards) == 1 {
		user.HasPaymentCard = false
		if err := s.users.Save(ctx, user); err != nil {
			return fmt.Errorf("save user %d: %w", user.ID, err)
		}
	}
	return nil
}

// Subscribe enrolls the user in plan. It is a no-op returning (nil, nil) when
// the user is already on that plan.
func (s *Service) Subscribe(ctx context.Context, user *models.User, plan string, quantity int64) (*Subscription, error) {
	return s.subscribe(ctx, s.lookupFor(user), plan, quantity)
}

func (s *Service) subscribe(ctx context.Context, l *lookup, plan string, quantity int64) (*Subscription, error) {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		return nil, ErrEmptyPlan
	}
	if l.user.IsOnPlan(plan) {
		return nil, nil
	}
	if quantity < 1 {
		quantity = 1
	}

	params := SubscriptionParams{Plan: plan, Quantity: quantity}
	if s.opts.Debug && s.opts.DebugTrialPeriod.IsSet() {
		s.opts.DebugTrialPeriod.Apply(&params, s.now())
	}

	cust, err := l.getCustomer(ctx)
	if err != nil {
		return nil, err
	}
	// Creating the customer may already have enrolled the default plan.
	if l.user.IsOnPlan(plan) {
		return l.subscription, nil
	}

	sub, err := s.provider.CreateSubscription(ctx, cust.ID, params)
	if err != nil {
		return nil, fmt.Errorf("create subscription to %s: %w", plan, err)
	}
	l.setSubscription(sub)
	log.Infof("[Billing] user %d subscribed to %s (%s)", l.user.ID, plan, sub.ID)

	if err := s.SyncSubscriptionDetails(ctx, l.user, sub); err != nil {
		return sub, err
	}
	return sub, nil
}

// UpdateSubscription applies every field of upd to the user's live
// subscription and mirrors the result locally.
func (s *Service) UpdateSubscription(ctx context.Context, user *models.User, upd SubscriptionUpdate) (*Subscription, error) {
	l := s.lookupFor(user)
	sub, err := l.getSubscription(ctx)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoSubscription
	}
	if upd.IsEmpty() {
		return sub, nil
	}

	updated, err := s.provider.UpdateSubscription(ctx, sub, upd)
	if err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	l.setSubscription(updated)

	if err := s.SyncSubscriptionDetails(ctx, user, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// CancelSubscription deletes the user's remote subscription and clears the
// local plan fields.
func (s *Service) CancelSubscription(ctx context.Context, user *models.User) error {
	l := s.lookupFor(user)
	sub, err := l.getSubscription(ctx)
	if err != nil {
		return err
	}
	if sub != nil {
		if err := s.provider.CancelSubscription(ctx, sub.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
		}
		log.Infof("[Billing] user %d cancelled subscription %s", user.ID, sub.ID)
	}
	l.setSubscription(nil)
	return s.SyncSubscriptionDetails(ctx, user, nil)
}

func containsCard(cards []Card, id string) bool {
	for _, c := range cards {
		if c.ID == id {
			return true
		}
	}
	return false
}
