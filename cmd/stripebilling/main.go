package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/stripe-billing/app/repository"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing/stripeprovider"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/cache"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/database"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/env"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/mail"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/router"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/session"
	"github.com/ManuelReschke/stripe-billing/views"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	opts, err := billing.OptionsFromEnv()
	if err != nil {
		log.Fatalf("billing config: %v", err)
	}
	if err := opts.Validate(); err != nil {
		log.Fatalf("billing config: %v", err)
	}

	database.SetupDatabase()
	cache.SetupCache()
	session.NewSessionStore()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()
	svc := billing.NewService(stripeprovider.New(opts.APIKey, nil), repos.User, opts)
	bus := billing.NewBus()

	mailer, err := mail.NewTemplateMailer()
	if err != nil {
		log.Fatalf("mail templates: %v", err)
	}
	billing.NewReconciler(svc, mailer).Register(bus)

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/stripebilling to project root
		"../../../", // Fallback
	}

	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	app := fiber.New(fiber.Config{
		Views:       views.NewEngine(),
		ViewsLayout: "layouts/main",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{Billing: svc, Bus: bus, Repos: repos, Captcha: hcaptcha.FromEnv()})

	return app
}
