package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func swaggerEngine(cfg SwaggerConfig, jwt gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.GET("/swagger/*any", SwaggerProtection(cfg, jwt), func(c *gin.Context) {
		c.String(http.StatusOK, "docs")
	})
	return engine
}

func swaggerRequest(engine *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestSwaggerProtection(t *testing.T) {
	t.Run("disabled docs answer 404", func(t *testing.T) {
		w := swaggerRequest(swaggerEngine(SwaggerConfig{Enabled: false}, nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})

	t.Run("enabled without restrictions serves everyone", func(t *testing.T) {
		w := swaggerRequest(swaggerEngine(SwaggerConfig{Enabled: true}, nil), "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("IP whitelist admits matching addresses", func(t *testing.T) {
		cfg := SwaggerConfig{Enabled: true, AllowedIPs: []string{"203.0.113.7"}}
		w := swaggerRequest(swaggerEngine(cfg, nil), "203.0.113.7:51000")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("IP whitelist rejects others", func(t *testing.T) {
		cfg := SwaggerConfig{Enabled: true, AllowedIPs: []string{"203.0.113.7"}}
		w := swaggerRequest(swaggerEngine(cfg, nil), "198.51.100.9:51000")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("CIDR ranges are honored", func(t *testing.T) {
		cfg := SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}
		assert.Equal(t, http.StatusOK, swaggerRequest(swaggerEngine(cfg, nil), "10.42.7.1:9000").Code)
		assert.Equal(t, http.StatusForbidden, swaggerRequest(swaggerEngine(cfg, nil), "192.168.1.1:9000").Code)
	})

	t.Run("auth requirement delegates to the JWT middleware", func(t *testing.T) {
		deny := func(c *gin.Context) {
			c.AbortWithStatus(http.StatusUnauthorized)
		}
		cfg := SwaggerConfig{Enabled: true, RequireAuth: true}
		w := swaggerRequest(swaggerEngine(cfg, deny), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		allow := func(c *gin.Context) { c.Next() }
		w = swaggerRequest(swaggerEngine(cfg, allow), "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestParseWhitelist(t *testing.T) {
	ips, nets := parseWhitelist([]string{"203.0.113.7", "10.0.0.0/8", "not-an-ip", "bad/cidr"})
	assert.Len(t, ips, 1)
	assert.Len(t, nets, 1)
}
