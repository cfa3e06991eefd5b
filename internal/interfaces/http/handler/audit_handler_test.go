package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/domain/entitlement"
)

func setupAuditRouter(env *handlerEnv, pageSize int) *gin.Engine {
	h := NewAuditHandler(env.guard, env.audit, pageSize)
	router := env.authenticated()
	router.GET("/audit/:userId", h.ListAuditEntries)
	return router
}

func seedAuditEntries(t *testing.T, env *handlerEnv, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		entry, err := entitlement.NewAuditLogEntry(
			env.tenantID, env.actorID,
			entitlement.AuditQuotaOverrideSet,
			env.account.ID,
			map[string]any{"seq": i},
			"203.0.113.10", "test-agent",
		)
		require.NoError(t, err)
		require.NoError(t, env.auditRows.Append(context.Background(), entry))
	}
}

func TestAuditHandler_List(t *testing.T) {
	env := newHandlerEnv()
	router := setupAuditRouter(env, 50)
	seedAuditEntries(t, env, 3)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/audit/"+env.userID.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appent.AuditPageDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Data.Total)
	assert.Len(t, resp.Data.Entries, 3)
	assert.Equal(t, 50, resp.Data.Limit)
	assert.Equal(t, "quota_override_set", resp.Data.Entries[0].Action)
	assert.Equal(t, env.actorID, resp.Data.Entries[0].ActorID)
}

func TestAuditHandler_Pagination(t *testing.T) {
	env := newHandlerEnv()
	router := setupAuditRouter(env, 50)
	seedAuditEntries(t, env, 5)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", fmt.Sprintf("/audit/%s?limit=2&offset=4", env.userID), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appent.AuditPageDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(5), resp.Data.Total)
	assert.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, 2, resp.Data.Limit)
	assert.Equal(t, 4, resp.Data.Offset)
}

func TestAuditHandler_DefaultPageSize(t *testing.T) {
	env := newHandlerEnv()
	router := setupAuditRouter(env, 10)
	seedAuditEntries(t, env, 15)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/audit/"+env.userID.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appent.AuditPageDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(15), resp.Data.Total)
	assert.Len(t, resp.Data.Entries, 10)
}

func TestAuditHandler_InvalidPagination(t *testing.T) {
	env := newHandlerEnv()
	router := setupAuditRouter(env, 50)

	tests := []string{"limit=5000", "offset=-1", "limit=abc"}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/audit/"+env.userID.String()+"?"+query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuditHandler_EmptyTrail(t *testing.T) {
	env := newHandlerEnv()
	router := setupAuditRouter(env, 50)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/audit/"+env.userID.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appent.AuditPageDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(0), resp.Data.Total)
	assert.Empty(t, resp.Data.Entries)
}
