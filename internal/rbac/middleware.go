package rbac

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"campaign-dialer/internal/auth"
)

// RequireOrganization enforces tenant scoping: organization_id must exist in
// context unless the caller is a super_admin.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := auth.Role(c.Request.Context()); IsSuperAdmin(role) {
			c.Next()
			return
		}
		oid, err := auth.OrganizationID(c.Request.Context())
		if err != nil || oid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// super_admin bypasses the check.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsSuperAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CanAccessOrganization reports whether the caller in ctx may act on resources
// owned by organizationID.
func CanAccessOrganization(ctx context.Context, organizationID string) bool {
	if role, _ := auth.Role(ctx); IsSuperAdmin(role) {
		return true
	}
	oid, err := auth.OrganizationID(ctx)
	return err == nil && oid == organizationID
}
