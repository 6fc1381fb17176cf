package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testAuthConfig = &config.AuthConfig{
	JWTSecret:        "test-secret-key",
	TokenExpireHours: 24,
}

func TestGenerateToken(t *testing.T) {
	token, expiresAt, err := GenerateToken("testuser", "testtenant", testAuthConfig)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Expected non-empty token")
	}

	expectedExpiry := time.Now().Add(24 * time.Hour)
	if expiresAt.Before(expectedExpiry.Add(-time.Minute)) || expiresAt.After(expectedExpiry.Add(time.Minute)) {
		t.Errorf("Expiry time %v is not within expected range of %v", expiresAt, expectedExpiry)
	}

	claims, err := ParseToken(token, testAuthConfig)
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if claims.Username != "testuser" || claims.Tenant != "testtenant" {
		t.Errorf("Unexpected claims %+v", claims)
	}
	if claims.Subject != "testuser" {
		t.Errorf("Expected subject 'testuser', got '%s'", claims.Subject)
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func TestParseTokenRejects(t *testing.T) {
	valid := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "wrong secret",
			token: signClaims(t, jwt.SigningMethodHS256, []byte("other"), Claims{Username: "u", Tenant: "t", RegisteredClaims: valid}),
		},
		{
			name:  "unexpected algorithm",
			token: signClaims(t, jwt.SigningMethodHS512, []byte(testAuthConfig.JWTSecret), Claims{Username: "u", Tenant: "t", RegisteredClaims: valid}),
		},
		{
			name: "foreign issuer",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testAuthConfig.JWTSecret), Claims{Username: "u", Tenant: "t",
				RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: valid.ExpiresAt}}),
		},
		{
			name:  "missing tenant",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testAuthConfig.JWTSecret), Claims{Username: "u", RegisteredClaims: valid}),
		},
		{
			name:  "none algorithm",
			token: signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, Claims{Username: "u", Tenant: "t", RegisteredClaims: valid}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, testAuthConfig); err == nil {
				t.Error("Expected token to be rejected")
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	token, _, err := GenerateToken("testuser", "testtenant", testAuthConfig)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"invalid format", token, http.StatusUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"invalid token", "Bearer invalid.token.here", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AuthMiddleware(testAuthConfig))
			router.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "ok"})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	token, _, _ := GenerateToken("testuser", "testtenant", testAuthConfig)

	var tenant, username, ctxTenant, ctxUsername any
	router := gin.New()
	router.Use(AuthMiddleware(testAuthConfig))
	router.GET("/test", func(c *gin.Context) {
		tenant = GetTenant(c)
		username = GetUsername(c)
		ctxTenant = c.Request.Context().Value(logger.TenantKey)
		ctxUsername = c.Request.Context().Value(logger.UsernameKey)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if tenant != "testtenant" || ctxTenant != "testtenant" {
		t.Errorf("Expected tenant in gin and request context, got %v / %v", tenant, ctxTenant)
	}
	if username != "testuser" || ctxUsername != "testuser" {
		t.Errorf("Expected username in gin and request context, got %v / %v", username, ctxUsername)
	}
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	tokenString := signClaims(t, jwt.SigningMethodHS256, []byte(testAuthConfig.JWTSecret), Claims{
		Username: "testuser",
		Tenant:   "testtenant",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	})

	router := gin.New()
	router.Use(AuthMiddleware(testAuthConfig))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d for expired token, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestGetUsernameAndTenant(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUsername(c) != "" || GetTenant(c) != "" {
		t.Error("Expected empty strings for unset identity")
	}

	c.Set("username", "testuser")
	c.Set("tenant", "testtenant")
	if GetUsername(c) != "testuser" {
		t.Errorf("Expected 'testuser', got '%s'", GetUsername(c))
	}
	if GetTenant(c) != "testtenant" {
		t.Errorf("Expected 'testtenant', got '%s'", GetTenant(c))
	}
}
