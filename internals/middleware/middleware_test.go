package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T, a *Authenticator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/me", a.Middleware(), func(ctx *gin.Context) {
		member, ok := MemberID(ctx)
		require.True(t, ok)
		ctx.String(http.StatusOK, member.String())
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	log, _ := test.NewNullLogger()
	a, err := NewAuthenticator("secret", log)
	require.NoError(t, err)
	router := newAuthRouter(t, a)

	member := uuid.New()
	token, err := a.Sign(member, time.Hour)
	require.NoError(t, err)

	expired, err := a.Sign(member, -time.Hour)
	require.NoError(t, err)

	other, err := NewAuthenticator("other", log)
	require.NoError(t, err)
	foreign, err := other.Sign(member, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": member.String()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"bearer token", "Bearer " + token, "", http.StatusOK},
		{"cookie token", "", token, http.StatusOK},
		{"missing token", "", "", http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized},
		{"unsigned token", "Bearer " + unsigned, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, member.String(), w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "ZIPERR006")
			}
		})
	}
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := NewAuthenticator("", log)
	assert.Error(t, err)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, hook := test.NewNullLogger()

	router := gin.New()
	router.Use(RequestLogger(log))
	router.GET("/ok", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	router.GET("/missing", func(ctx *gin.Context) { ctx.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, 200, hook.LastEntry().Data["status"])

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-Id", "abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "abc", hook.LastEntry().Data["request_id"])
}
