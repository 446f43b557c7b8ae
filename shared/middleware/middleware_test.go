package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeeandit/transaction/shared/apperror"
	"github.com/coffeeandit/transaction/shared/logging"
)

const testSecret = "test-secret"

func token(t *testing.T, method jwt.SigningMethod, secret string, expiresIn time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "usr-001",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not a bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"expired token", "Bearer " + token(t, jwt.SigningMethodHS256, testSecret, -time.Minute), http.StatusUnauthorized},
		{"wrong secret", "Bearer " + token(t, jwt.SigningMethodHS256, "nope", time.Hour), http.StatusUnauthorized},
		{"valid token", "Bearer " + token(t, jwt.SigningMethodHS256, testSecret, time.Hour), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject, forwarded string
			r := gin.New()
			r.GET("/", AuthMiddleware(testSecret), func(c *gin.Context) {
				subject = GetSubject(c)
				forwarded = BearerToken(c.Request.Context())
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "usr-001", subject)
				assert.Equal(t, strings.TrimPrefix(tt.header, "Bearer "), forwarded)
			}
		})
	}
}

func TestIssueTokenIsAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signed, err := IssueToken(testSecret, "ops", time.Minute)
	require.NoError(t, err)

	var subject string
	r := gin.New()
	r.GET("/", AuthMiddleware(testSecret), func(c *gin.Context) {
		subject = GetSubject(c)
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", subject)
}

type payload struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gt=0"`
}

func TestBindJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantDetails int
	}{
		{"valid", `{"name":"a","count":1}`, false, 0},
		{"malformed", `{"name":`, true, 0},
		{"missing fields", `{}`, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var p payload
			err := BindJSON(c, &p)
			if !tt.wantErr {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Len(t, err.Details, tt.wantDetails)
		})
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.NotFound("abc"), http.StatusNotFound, "NOT_FOUND"},
		{&apperror.ValidationError{Message: "bad"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondWithError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware(logging.Discard()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(logging.Discard()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	r := gin.New()
	r.Use(NewRateLimiter(client, logging.Discard(), 1, 1).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	tests := []struct {
		name       string
		rps, burst int
		limit      int
		window     time.Duration
	}{
		{"burst above rate", 10, 20, 20, 2 * time.Second},
		{"burst equal to rate", 5, 5, 5, time.Second},
		{"burst below rate", 10, 4, 10, time.Second},
		{"zero rate", 0, 3, 3, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(nil, logging.Discard(), tt.rps, tt.burst)
			assert.Equal(t, tt.limit, rl.limit)
			assert.Equal(t, tt.window, rl.window)
		})
	}
}
