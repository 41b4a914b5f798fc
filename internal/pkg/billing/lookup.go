package billing

import (
	"context"
	"errors"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

// lookup memoizes remote objects of one user for the duration of a single
// operation, including nested operations it triggers.
type lookup struct {
	s    *Service
	user *models.User

	customer       *Customer
	customerLoaded bool

	subscription       *Subscription
	subscriptionLoaded bool
}

func (s *Service) lookupFor(user *models.User) *lookup {
	return &lookup{s: s, user: user}
}

// getCustomer returns the user's remote customer. A missing customer is
// created when AutoCreateCustomer is on, otherwise ErrNoCustomer is returned.
func (l *lookup) getCustomer(ctx context.Context) (*Customer, error) {
	if l.customerLoaded {
		if l.customer == nil {
			return nil, ErrNoCustomer
		}
		return l.customer, nil
	}

	if id := l.user.CustomerID(); id != "" {
		cust, err := l.s.provider.GetCustomer(ctx, id)
		switch {
		case err == nil:
			l.setCustomer(cust)
			return cust, nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	if !l.s.opts.AutoCreateCustomer {
		l.setCustomer(nil)
		return nil, ErrNoCustomer
	}
	return l.s.createCustomer(ctx, l)
}

func (l *lookup) setCustomer(cust *Customer) {
	l.customer = cust
	l.customerLoaded = true
}

// getSubscription returns the user's current remote subscription or nil when
// the user has none or it no longer exists remotely.
func (l *lookup) getSubscription(ctx context.Context) (*Subscription, error) {
	if l.subscriptionLoaded {
		return l.subscription, nil
	}

	id := l.user.SubscriptionID()
	if id == "" {
		l.setSubscription(nil)
		return nil, nil
	}
	sub, err := l.s.provider.GetSubscription(ctx, id)
	if errors.Is(err, ErrNotFound) {
		l.setSubscription(nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.setSubscription(sub)
	return sub, nil
}

func (l *lookup) setSubscription(sub *Subscription) {
	l.subscription = sub
	l.subscriptionLoaded = true
}
