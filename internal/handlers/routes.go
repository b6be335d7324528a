package handlers

import "github.com/gofiber/fiber/v2"

// API bundles the handlers of the versioned HTTP API.
type API struct {
	Auth     *AuthHandler
	Products *ProductHandler
	Carts    *CartHandler
	Orders   *OrderHandler

	// Authenticate guards every route except registration and login.
	Authenticate fiber.Handler
}

// RegisterRoutes mounts the API on router. Public routes are registered
// before the authenticated group so they are matched first.
func (a *API) RegisterRoutes(router fiber.Router) {
	a.Auth.RegisterRoutes(router)

	protected := router.Group("", a.Authenticate)
	protected.Get("/me", a.Auth.HandleMe)
	a.Products.RegisterRoutes(protected)
	a.Carts.RegisterRoutes(protected)
	a.Orders.RegisterRoutes(protected)
}
