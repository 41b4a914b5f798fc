package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"github.com/ManuelReschke/stripe-billing/app/repository"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/session"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/usercontext"
)

type AuthController struct {
	users   repository.UserRepository
	bus     *billing.Bus
	captcha *hcaptcha.Verifier
}

// NewAuthController creates the controller. captcha may be nil to accept
// signups without a challenge.
func NewAuthController(users repository.UserRepository, bus *billing.Bus, captcha *hcaptcha.Verifier) *AuthController {
	return &AuthController{users: users, bus: bus, captcha: captcha}
}

func (ac *AuthController) HandleLoginView(c *fiber.Ctx) error {
	return c.Render("auth/login", pageData(c, fiber.Map{}))
}

func (ac *AuthController) HandleSignupView(c *fiber.Ctx) error {
	siteKey := ""
	if ac.captcha != nil {
		siteKey = ac.captcha.SiteKey
	}
	return c.Render("auth/signup", pageData(c, fiber.Map{"HCaptchaSiteKey": siteKey}))
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	// notice: the user is not told which part of the login failed
	user, err := ac.users.GetByEmail(strings.TrimSpace(c.FormValue("email")))
	if err != nil || !user.CheckPassword(c.FormValue("password")) || !user.IsActive() {
		fm["message"] = "There is a problem with the login process"

		return flash.WithError(c, fm).Redirect("/login")
	}

	if err := ac.startSession(c, user); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := ac.users.Update(user); err != nil {
		log.Warnf("[Auth] update last login of user %d: %v", user.ID, err)
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Welcome back!",
	}

	return flash.WithSuccess(c, fm).Redirect(billingPage)
}

// HandleSignup creates the account, announces it on the billing bus and logs
// the user in.
func (ac *AuthController) HandleSignup(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if ac.captcha != nil {
		if ok, err := ac.captcha.Verify(ctx, c.FormValue("h-captcha-response")); !ok {
			log.Warnf("[Auth] captcha rejected: %v", err)
			fm["message"] = "Captcha validation failed. Please try again."

			return flash.WithError(c, fm).Redirect("/signup")
		}
	}

	email := strings.TrimSpace(c.FormValue("email"))
	if _, err := ac.users.GetByEmail(email); err == nil {
		fm["message"] = "This e-mail address is already registered"

		return flash.WithError(c, fm).Redirect("/signup")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Auth] lookup %s: %v", email, err)
		fm["message"] = "Signup is currently not possible"

		return flash.WithError(c, fm).Redirect("/signup")
	}

	user, err := models.CreateUser(strings.TrimSpace(c.FormValue("username")), email, c.FormValue("password"))
	if err != nil {
		fm["message"] = "Please check your input"

		return flash.WithError(c, fm).Redirect("/signup")
	}
	if err := ac.users.Create(user); err != nil {
		log.Errorf("[Auth] create user %s: %v", email, err)
		fm["message"] = "Signup is currently not possible"

		return flash.WithError(c, fm).Redirect("/signup")
	}

	if err := ac.bus.PublishUserSignup(ctx, user); err != nil {
		log.Errorf("[Auth] signup handlers for user %d: %v", user.ID, err)
	}

	if err := ac.startSession(c, user); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Your account has been created",
	}

	return flash.WithSuccess(c, fm).Redirect(billingPage)
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := session.Destroy(c); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "logged out (no sess)"}).Redirect("/login")
	}

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Bye bye!"}).Redirect("/login")
}

func (ac *AuthController) startSession(c *fiber.Ctx, user *models.User) error {
	store := session.GetSessionStore()
	if store == nil {
		return errors.New("session store not initialized")
	}
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)

	return sess.Save()
}
