package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/billing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/usercontext"
)

// DecisionRequest is the body of an admin decision.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// ExpireRequest optionally moves the expiry cut-off.
type ExpireRequest struct {
	AsOf *time.Time `json:"asOf"`
}

// HandleGetDowngradePolicy returns the governance policy.
func (h *Controllers) HandleGetDowngradePolicy(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	policy, err := h.Governance.Policy(ctx)
	if err != nil {
		return h.respondBillingError(c, err)
	}
	return c.JSON(policy)
}

// HandleUpdateDowngradePolicy replaces the governance policy.
func (h *Controllers) HandleUpdateDowngradePolicy(c *fiber.Ctx) error {
	var body models.DowngradePolicy
	if err := parseBody(c, &body); err != nil {
		return h.respondBillingError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.Governance.SetPolicy(ctx, body); err != nil {
		return h.respondBillingError(c, err)
	}
	policy, err := h.Governance.Policy(ctx)
	if err != nil {
		return h.respondBillingError(c, err)
	}

	h.Log.WithFields(logrus.Fields{
		"mode":       policy.Mode,
		"updated_by": usercontext.GetUserID(c),
	}).Info("downgrade policy updated")
	return c.JSON(policy)
}

// HandleListDowngradeRequests lists requests, optionally filtered by status.
func (h *Controllers) HandleListDowngradeRequests(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	requests, err := h.Governance.ListRequests(ctx, c.Query("status"))
	if err != nil {
		return h.respondBillingError(c, err)
	}
	if requests == nil {
		requests = []models.DowngradeRequest{}
	}
	return c.JSON(fiber.Map{"requests": requests})
}

// HandleDecideDowngradeRequest approves or rejects a pending request.
func (h *Controllers) HandleDecideDowngradeRequest(c *fiber.Ctx) error {
	var body DecisionRequest
	if err := parseBody(c, &body); err != nil {
		return h.respondBillingError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	uc := usercontext.GetUserContext(c)
	out, err := h.Decisions.Decide(ctx, c.Params("id"), body.Decision, billing.Actor{
		UserID: uc.UserID,
		Name:   uc.Username,
	})
	if err != nil {
		return h.respondBillingError(c, err)
	}
	return c.JSON(out)
}

// HandleExpireListings moves listings with a lapsed package to the
// configured fallback package.
func (h *Controllers) HandleExpireListings(c *fiber.Ctx) error {
	var body ExpireRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &body); err != nil {
			return h.respondBillingError(c, err)
		}
	}
	asOf := time.Now()
	if body.AsOf != nil {
		asOf = *body.AsOf
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	n, err := h.Expiry.ExpireListings(ctx, asOf)
	if err != nil {
		return h.respondBillingError(c, err)
	}
	return c.JSON(fiber.Map{"expired": n})
}
