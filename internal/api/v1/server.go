package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong defines model for Pong.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (POST /listings)
	PostListing(c *fiber.Ctx) error
	// (POST /plan-transitions)
	PostPlanTransition(c *fiber.Ctx) error
	// (POST /plan-transitions/verify)
	PostPlanTransitionVerify(c *fiber.Ctx) error
	// (GET /admin/downgrade-policy)
	GetDowngradePolicy(c *fiber.Ctx) error
	// (PUT /admin/downgrade-policy)
	PutDowngradePolicy(c *fiber.Ctx) error
	// (GET /admin/downgrade-requests)
	GetDowngradeRequests(c *fiber.Ctx) error
	// (POST /admin/downgrade-requests/{id}/decision)
	PostDowngradeDecision(c *fiber.Ctx, id string) error
	// (POST /admin/listings/expire)
	PostExpireListings(c *fiber.Ctx) error
}

// FiberServerOptions provides options for the Fiber server.
type FiberServerOptions struct {
	BaseURL     string
	Middlewares []fiber.Handler
	// Authenticate resolves the caller before Require* run.
	Authenticate fiber.Handler
	// RequireUser guards the owner routes.
	RequireUser fiber.Handler
	// RequireAdmin guards the admin routes.
	RequireAdmin fiber.Handler
}

// ServerInterfaceWrapper converts path parameters for the handlers.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

// PostDowngradeDecision operation middleware
func (siw *ServerInterfaceWrapper) PostDowngradeDecision(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Invalid format for parameter id",
		})
	}
	return siw.Handler.PostDowngradeDecision(c, id)
}

// RegisterHandlers creates the routes without authentication guards.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, FiberServerOptions{})
}

// RegisterHandlersWithOptions creates the routes with additional options.
func RegisterHandlersWithOptions(router fiber.Router, si ServerInterface, options FiberServerOptions) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	for _, m := range options.Middlewares {
		router.Use(m)
	}

	user := guards(options.Authenticate, options.RequireUser)
	admin := guards(options.Authenticate, options.RequireAdmin)

	router.Get(options.BaseURL+"/ping", si.GetPing)

	router.Post(options.BaseURL+"/listings", append(user, si.PostListing)...)
	router.Post(options.BaseURL+"/plan-transitions", append(user, si.PostPlanTransition)...)
	router.Post(options.BaseURL+"/plan-transitions/verify", append(user, si.PostPlanTransitionVerify)...)

	router.Get(options.BaseURL+"/admin/downgrade-policy", append(admin, si.GetDowngradePolicy)...)
	router.Put(options.BaseURL+"/admin/downgrade-policy", append(admin, si.PutDowngradePolicy)...)
	router.Get(options.BaseURL+"/admin/downgrade-requests", append(admin, si.GetDowngradeRequests)...)
	router.Post(options.BaseURL+"/admin/downgrade-requests/:id/decision", append(admin, wrapper.PostDowngradeDecision)...)
	router.Post(options.BaseURL+"/admin/listings/expire", append(admin, si.PostExpireListings)...)
}

func guards(handlers ...fiber.Handler) []fiber.Handler {
	var out []fiber.Handler
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	// full slice expression so every route appends into its own array
	return out[:len(out):len(out)]
}
