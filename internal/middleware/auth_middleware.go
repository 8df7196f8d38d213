package middleware

import (
	"strings"

	"go-inventory-hold/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// Scopes granted to collaborating services.
const (
	ScopeReservationWrite   = "reservation:write"
	ScopeReservationConvert = "reservation:convert"
	ScopeCatalogWrite       = "catalog:write"
	ScopeOpsMaintenance     = "ops:maintenance"
)

// RequireAuth validates the bearer token and stores the caller in the context.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		claims, err := jwt.ValidateToken(parts[1])
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals("service", claims.Subject)
		c.Locals("scopes", claims.Scopes)

		return c.Next()
	}
}

// RequireScope checks if the calling service was granted the scope
func RequireScope(requiredScope string) fiber.Handler {
	return RequireAnyScope(requiredScope)
}

// RequireAnyScope checks if the caller has at least one of the scopes
func RequireAnyScope(requiredScopes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scopes, ok := c.Locals("scopes").([]string)
		if !ok {
			return c.Status(403).JSON(fiber.Map{"error": "No scopes found"})
		}

		for _, have := range scopes {
			for _, want := range requiredScopes {
				if have == want {
					return c.Next()
				}
			}
		}

		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires one of " + strings.Join(requiredScopes, ", ") + " scopes",
		})
	}
}

// CallerService returns the authenticated service name, or "anonymous".
func CallerService(c *fiber.Ctx) string {
	if name, ok := c.Locals("service").(string); ok && name != "" {
		return name
	}
	return "anonymous"
}
