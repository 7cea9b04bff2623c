package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Bizdir/internal/pkg/listing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/usercontext"
)

// HandleCreateListing creates a listing for the caller. A resubmission of
// an existing listing answers 200 with the original record.
func (h *Controllers) HandleCreateListing(c *fiber.Ctx) error {
	var body listing.CreateInput
	if err := parseBody(c, &body); err != nil {
		return h.respondBillingError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Listings.Create(ctx, usercontext.GetUserID(c), body)
	if err != nil {
		return h.respondBillingError(c, err)
	}

	status := fiber.StatusCreated
	if res.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"businessId": res.Listing.ID,
		"slug":       res.Listing.Slug,
		"replayed":   res.Replayed,
	})
}
