package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sirupsen/logrus"

	apiv1 "github.com/ManuelReschke/Bizdir/internal/api/v1"
	"github.com/ManuelReschke/Bizdir/internal/pkg/middleware"
)

type ApiRouter struct {
	server  apiv1.ServerInterface
	users   middleware.UserLookup
	storage fiber.Storage
	log     logrus.FieldLogger
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    h.storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "Rate limit exceeded",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiv1.RegisterHandlersWithOptions(v1, h.server, apiv1.FiberServerOptions{
		Authenticate: middleware.APIKeyAuthMiddleware(h.users, h.log),
		RequireUser:  middleware.RequireAPIAuth,
		RequireAdmin: middleware.RequireAdminAPI,
	})
}

func NewApiRouter(server apiv1.ServerInterface, users middleware.UserLookup, storage fiber.Storage, log logrus.FieldLogger) *ApiRouter {
	return &ApiRouter{server: server, users: users, storage: storage, log: log}
}
