package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/billing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/listing"
)

const defaultRequestTimeout = 20 * time.Second

var validate = validator.New()

// Dependencies are the services behind the HTTP handlers.
type Dependencies struct {
	Engine         *billing.Engine
	Verifier       *billing.Verifier
	Governance     *billing.GovernanceStore
	Decisions      *billing.GovernanceService
	Expiry         *billing.ExpiryService
	Webhooks       *billing.WebhookService
	Listings       *listing.Service
	RequestTimeout time.Duration
	Log            logrus.FieldLogger
}

// Controllers holds the JSON handlers of the billing and listing API.
type Controllers struct {
	Dependencies
}

// New creates the controllers.
func New(deps Dependencies) *Controllers {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = defaultRequestTimeout
	}
	return &Controllers{Dependencies: deps}
}

// requestContext bounds the work of one request.
func (h *Controllers) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.RequestTimeout)
}

// respondBillingError maps service errors to the JSON error shape.
func (h *Controllers) respondBillingError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "internal_server_error"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status, code = fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, apperr.ErrPaymentVerification):
		status, code = fiber.StatusBadRequest, "payment_verification_failed"
	case errors.Is(err, apperr.ErrPolicyViolation):
		status, code = fiber.StatusBadRequest, "policy_violation"
	case errors.Is(err, apperr.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperr.ErrNotFound):
		status, code = fiber.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrConflict):
		status, code = fiber.StatusConflict, "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = fiber.StatusGatewayTimeout, "timeout"
	}

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		h.Log.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("request failed")
		message = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// parseBody decodes and validates a JSON body into dst.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Validation("%v", err)
	}
	return nil
}
