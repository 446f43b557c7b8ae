package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeeandit/transaction/shared/config"
	"github.com/coffeeandit/transaction/shared/logging"
	"github.com/coffeeandit/transaction/shared/middleware"
	"github.com/coffeeandit/transaction/transaction-service/internal/handler"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	h := handler.NewTransactionHandler(nil, nil, handler.Options{Version: "V2"}, logging.Discard())
	return SetupRouter(cfg, h, logging.Discard())
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	signed, err := middleware.IssueToken(secret, "usr-001", time.Hour)
	require.NoError(t, err)
	return signed
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestV1RequiresBearerToken(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signedToken(t, "other-secret"), http.StatusUnauthorized},
		{"valid token", "Bearer " + signedToken(t, "test-secret"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/v1/transactions/version", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}
