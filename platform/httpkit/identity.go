// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"context"
	"net/http"

	"ionizer_portal/platform/logger"

	"github.com/gin-gonic/gin"
)

// Identity represents the signed-in principal of a request.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access user information without depending on Gin.
type Identity interface {
	// PrincipalID returns the identity service's user ID.
	PrincipalID() string
	// IsAdmin reports whether the principal holds an admin grant.
	IsAdmin() bool
	// Role returns the admin role, empty for non-admins.
	Role() string
	// IsAuthenticated returns true if a principal is present.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	principalID   string
	isAdmin       bool
	role          string
	authenticated bool
}

func (i *identity) PrincipalID() string {
	return i.principalID
}

func (i *identity) IsAdmin() bool {
	return i.isAdmin
}

func (i *identity) Role() string {
	return i.role
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// SetIdentity records the request's principal on the Gin context and tags
// the request context for logging.
func SetIdentity(c *gin.Context, principalID string, isAdmin bool, role string) {
	c.Set(ContextPrincipalIDKey, principalID)
	c.Set(ContextIsAdminKey, isAdmin)
	c.Set(ContextRoleKey, role)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIDKey, principalID))
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	principalID := c.GetString(ContextPrincipalIDKey)
	if principalID == "" {
		return &identity{authenticated: false}
	}

	return &identity{
		principalID:   principalID,
		isAdmin:       c.GetBool(ContextIsAdminKey),
		role:          c.GetString(ContextRoleKey),
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
