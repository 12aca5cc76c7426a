package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/unchk/agrt-api/internal/models"
)

func rbacRouter(claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/users/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRBACAllowsRole(t *testing.T) {
	r := rbacRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}, "ADMIN")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/users/u-9", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsRole(t *testing.T) {
	r := rbacRouter(&models.JWTClaims{UserID: "cand-1", Role: models.RoleCandidate}, "ADMIN")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/users/u-9", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACAllowsSelf(t *testing.T) {
	r := rbacRouter(&models.JWTClaims{UserID: "cand-1", Role: models.RoleCandidate}, "ADMIN", "SELF")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/users/cand-1", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Same rule, someone else's resource.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/users/cand-2", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACMissingClaims(t *testing.T) {
	r := rbacRouter(nil, "ADMIN")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/users/u-9", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
