package main

import (
	"fmt"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/internal/pkg/billing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/bootstrap"
	"github.com/ManuelReschke/Bizdir/internal/pkg/cache"
	"github.com/ManuelReschke/Bizdir/internal/pkg/database"
	"github.com/ManuelReschke/Bizdir/internal/pkg/env"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
	"github.com/ManuelReschke/Bizdir/internal/pkg/mail"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
	"github.com/ManuelReschke/Bizdir/internal/pkg/router"
)

func main() {
	env.SetupEnvFile()
	log := logging.New()

	app, err := NewApplication(log)
	if err != nil {
		log.WithError(err).Fatal("could not start application")
	}
	err = app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication(log *logrus.Logger) (*fiber.App, error) {
	db, err := database.Open(log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	redisClient := cache.New(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cfg := bootstrap.ConfigFromEnv(log)
	svc := bootstrap.NewServices(bootstrap.Infra{
		DB:      db,
		Redis:   redisClient,
		Gateway: billing.NewStripeGateway(env.GetEnv("STRIPE_SECRET_KEY", "")),
		Mailer:  mail.NewSMTPMailer(mail.ConfigFromEnv(), log),
		Metrics: metrics.NewBilling(reg),
		Log:     log,
	}, cfg)

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), requestid.New(), logger.New())

	// prometheus metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// SWAGGER / OPENAPI
	if specPath := findOpenAPISpec(); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: specPath,
			Path:     "v1",
		}))
	} else {
		log.Warn("openapi.yml not found, API docs disabled")
	}

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Controllers:    svc.Controllers(cfg.RequestTimeout, log),
		Users:          svc.Repositories.User,
		LimiterStorage: router.NewLimiterStorage(redisClient),
		Log:            log,
	})

	return app, nil
}

func findOpenAPISpec() string {
	// Define possible base paths
	for _, base := range []string{"./", "../../", "../../../"} {
		path := base + "docs/openapi.yml"
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
