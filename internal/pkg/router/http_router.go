package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Bizdir/app/controllers"
)

type HttpRouter struct {
	ctl *controllers.Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Billing provider webhooks (signature-verified in controller)
	app.Post("/billing/stripe/webhook", h.ctl.HandleStripeWebhook)
}

func NewHttpRouter(ctl *controllers.Controllers) *HttpRouter {
	return &HttpRouter{ctl: ctl}
}
