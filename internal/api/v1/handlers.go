package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers to keep behavior consistent
	"github.com/ManuelReschke/Bizdir/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	ctl *controllers.Controllers
}

// NewAPIServer creates a new API server instance
func NewAPIServer(ctl *controllers.Controllers) *APIServer {
	return &APIServer{ctl: ctl}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostListing creates a listing for the API key owner.
func (s *APIServer) PostListing(c *fiber.Ctx) error {
	return s.ctl.HandleCreateListing(c)
}

// PostPlanTransition changes the package of one of the caller's listings.
func (s *APIServer) PostPlanTransition(c *fiber.Ctx) error {
	return s.ctl.HandlePlanTransition(c)
}

// PostPlanTransitionVerify confirms a returned checkout session.
func (s *APIServer) PostPlanTransitionVerify(c *fiber.Ctx) error {
	return s.ctl.HandleVerifyCheckout(c)
}

func (s *APIServer) GetDowngradePolicy(c *fiber.Ctx) error {
	return s.ctl.HandleGetDowngradePolicy(c)
}

func (s *APIServer) PutDowngradePolicy(c *fiber.Ctx) error {
	return s.ctl.HandleUpdateDowngradePolicy(c)
}

func (s *APIServer) GetDowngradeRequests(c *fiber.Ctx) error {
	return s.ctl.HandleListDowngradeRequests(c)
}

// PostDowngradeDecision approves or rejects a request. The controller reads
// id from the route params; the wrapper already checked it.
func (s *APIServer) PostDowngradeDecision(c *fiber.Ctx, id string) error {
	return s.ctl.HandleDecideDowngradeRequest(c)
}

func (s *APIServer) PostExpireListings(c *fiber.Ctx) error {
	return s.ctl.HandleExpireListings(c)
}
