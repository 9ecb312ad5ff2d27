package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"call-screener/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(role string, allowed ...string) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if role != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u", role))
		}
		c.Next()
	}, RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serveWithRole(RoleAdmin, RoleOwner); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	if code := serveWithRole(RoleTelephony, RoleOwner, RoleOperator); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveWithRole(RoleTelephony, RoleOperator, RoleTelephony); code != http.StatusOK {
		t.Fatalf("expected 200 when explicitly allowed, got %d", code)
	}
}

func TestRequireAnyRole_MissingRole(t *testing.T) {
	if code := serveWithRole("", RoleOwner); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
