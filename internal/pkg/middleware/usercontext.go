package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/stripe-billing/app/repository"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/session"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/usercontext"
)

// UserContextMiddleware loads the logged-in user for every request. Requests
// without a valid session stay anonymous.
func UserContextMiddleware(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store := session.GetSessionStore()
		if store == nil {
			return c.Next()
		}
		sess, err := store.Get(c)
		if err != nil {
			return c.Next()
		}

		userID, ok := sess.Get(usercontext.KeyUserID).(uint)
		if !ok || userID == 0 {
			return c.Next()
		}

		user, err := users.GetByID(userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Errorf("[UserContext] load user %d: %v", userID, err)
			}
			return c.Next()
		}
		if !user.IsActive() {
			return c.Next()
		}

		usercontext.SetUser(c, user)
		return c.Next()
	}
}
