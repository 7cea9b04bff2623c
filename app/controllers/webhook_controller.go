package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Bizdir/internal/pkg/billing"
)

// HandleStripeWebhook records and processes a Stripe delivery. Only
// infrastructure failures answer 5xx so that Stripe retries them.
func (h *Controllers) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.Webhooks.Handle(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		h.Log.WithError(err).Error("stripe webhook failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_failed"})
	}

	switch result {
	case billing.WebhookDuplicate:
		return c.JSON(fiber.Map{"ok": true, "duplicate": true})
	case billing.WebhookIgnored:
		return c.JSON(fiber.Map{"ok": true, "ignored": true})
	case billing.WebhookRejected:
		return c.JSON(fiber.Map{"ok": true, "rejected": true})
	default:
		return c.JSON(fiber.Map{"ok": true})
	}
}
