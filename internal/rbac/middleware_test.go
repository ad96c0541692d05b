package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"campaign-dialer/internal/auth"
)

func serve(userID, orgID, role string, chain ...gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, orgID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })

	r := gin.New()
	r.GET("/x", handlers...)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve("u", "o", RoleOperator, RequireOrganization(), RequireAnyRole(DispatchRoles...)))
	assert.Equal(t, http.StatusForbidden, serve("u", "o", RoleAgent, RequireOrganization(), RequireAnyRole(DispatchRoles...)))
	assert.Equal(t, http.StatusUnauthorized, serve("u", "o", "", RequireAnyRole(DispatchRoles...)))
}

func TestSuperAdminBypasses(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve("u", "", RoleSuperAdmin, RequireOrganization(), RequireAnyRole(RoleOwner)))
}

func TestRequireOrganization(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, serve("u", "", RoleOwner, RequireOrganization(), RequireAnyRole(RoleOwner)))
}

func TestCanAccessOrganization(t *testing.T) {
	ctx := auth.WithIdentity(context.Background(), "u", "org-1", RoleOperator)
	assert.True(t, CanAccessOrganization(ctx, "org-1"))
	assert.False(t, CanAccessOrganization(ctx, "org-2"))

	admin := auth.WithIdentity(context.Background(), "u", "", RoleSuperAdmin)
	assert.True(t, CanAccessOrganization(admin, "org-2"))
}
