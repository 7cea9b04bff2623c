package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Bizdir/internal/pkg/billing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/usercontext"
)

// PlanTransitionRequest is the body of POST /plan-transitions.
type PlanTransitionRequest struct {
	BusinessID      uint   `json:"businessId" validate:"required"`
	SelectedPackage uint   `json:"selectedPackage" validate:"required"`
	PaymentMode     string `json:"paymentMode"`
}

// VerifyCheckoutRequest is the body of POST /plan-transitions/verify.
type VerifyCheckoutRequest struct {
	SessionID       string `json:"sessionId" validate:"required"`
	BusinessID      uint   `json:"businessId" validate:"required"`
	SelectedPackage uint   `json:"selectedPackage" validate:"required"`
	PaymentMode     string `json:"paymentMode" validate:"required"`
}

// HandlePlanTransition starts a package change for one of the caller's
// listings.
func (h *Controllers) HandlePlanTransition(c *fiber.Ctx) error {
	var body PlanTransitionRequest
	if err := parseBody(c, &body); err != nil {
		return h.respondBillingError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	out, err := h.Engine.RequestTransition(ctx, billing.TransitionRequest{
		OwnerUserID:     usercontext.GetUserID(c),
		BusinessID:      body.BusinessID,
		SelectedPackage: body.SelectedPackage,
		PaymentMode:     body.PaymentMode,
	})
	if err != nil {
		return h.respondBillingError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transitionResponse(out))
}

func transitionResponse(out *billing.TransitionOutcome) fiber.Map {
	switch out.Kind {
	case billing.OutcomeDowngradeRequested:
		return fiber.Map{
			"downgradeRequested":    true,
			"requiresAdminApproval": out.RequiresAdminApproval,
			"requestId":             out.RequestID,
		}
	case billing.OutcomeDowngraded:
		return fiber.Map{
			"downgraded":                 true,
			"cancelledSubscriptionCount": out.CancelledSubscriptionCount,
		}
	case billing.OutcomeUpgraded:
		return fiber.Map{"upgraded": true}
	default:
		return fiber.Map{"url": out.URL, "sessionId": out.SessionID}
	}
}

// HandleVerifyCheckout confirms a finished checkout session.
func (h *Controllers) HandleVerifyCheckout(c *fiber.Ctx) error {
	var body VerifyCheckoutRequest
	if err := parseBody(c, &body); err != nil {
		return h.respondBillingError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	out, err := h.Verifier.Verify(ctx, billing.VerifyRequest{
		SessionID:       body.SessionID,
		OwnerUserID:     usercontext.GetUserID(c),
		BusinessID:      body.BusinessID,
		SelectedPackage: body.SelectedPackage,
		PaymentMode:     body.PaymentMode,
	})
	if err != nil {
		return h.respondBillingError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(out)
}
