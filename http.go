package authcard

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/django/v3"
)

// NewViewEngine builds the django engine over the embedded templates.
func NewViewEngine(reload bool) *django.Engine {
	engine := django.NewPathForwardingFileSystem(http.FS(GetViewsFS()), "/", ".html")
	engine.Reload(reload)
	return engine
}

// AppOption customizes the fiber app before the card routes are mounted.
type AppOption func(app *fiber.App)

// NewApp builds the fiber app serving the card. Panics and server errors
// raised while handling a request land in the controller's fallback
// boundary.
func NewApp(controller *CardController, opts ...AppOption) *fiber.App {
	app := fiber.New(fiber.Config{
		Views:                 NewViewEngine(controller.Debug),
		ErrorHandler:          controller.HandleError,
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: controller.Debug,
	}))

	for _, opt := range opts {
		opt(app)
	}

	RegisterCardRoutes(app, controller)
	return app
}
