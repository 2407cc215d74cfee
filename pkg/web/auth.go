package web

import (
	"github.com/gofiber/fiber/v3"
)

// Headers set by the gateway after authenticating the caller.
const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

type identityKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	TenantID string
	UserID   string
}

// RequireIdentity rejects requests without tenant and user headers.
func RequireIdentity(c fiber.Ctx) error {
	tenantID := c.Get(TenantHeader)
	userID := c.Get(UserHeader)

	if tenantID == "" || userID == "" {
		return unauthorized(c, "X-Tenant-ID and X-User-ID headers are required")
	}

	c.Locals(identityKey{}, Identity{TenantID: tenantID, UserID: userID})

	return c.Next()
}

func identity(c fiber.Ctx) Identity {
	id, _ := c.Locals(identityKey{}).(Identity)

	return id
}
