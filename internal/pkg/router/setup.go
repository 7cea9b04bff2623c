package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/app/controllers"
	apiv1 "github.com/ManuelReschke/Bizdir/internal/api/v1"
	"github.com/ManuelReschke/Bizdir/internal/pkg/middleware"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps are what the routers need to serve requests.
type Deps struct {
	Controllers *controllers.Controllers
	Users       middleware.UserLookup
	// LimiterStorage backs the /api rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	Log            logrus.FieldLogger
}

func InstallRouter(app *fiber.App, deps Deps) {
	// Webhooks first: they authenticate by signature, not API key.
	setup(app,
		NewHttpRouter(deps.Controllers),
		NewApiRouter(apiv1.NewAPIServer(deps.Controllers), deps.Users, deps.LimiterStorage, deps.Log),
	)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
