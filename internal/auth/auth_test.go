package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "go-crop-inspector/internal/errors"
)

const testSecret = "leaf-secret"

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "grower-1",
		"email": "grower@example.com",
		"iss":   "crop-auth",
		"aud":   "crop-inspector",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestJWTVerifier_HS256(t *testing.T) {
	v, err := NewJWTVerifier(Options{Secret: testSecret, Issuer: "crop-auth", Audience: "crop-inspector"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	id, err := v.Verify(context.Background(), signHS256(t, testSecret, validClaims()))
	if err != nil {
		t.Fatalf("Expected token to verify, got %v", err)
	}
	if id.Subject != "grower-1" || id.Email != "grower@example.com" {
		t.Errorf("Unexpected identity %+v", id)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v, err := NewJWTVerifier(Options{Secret: testSecret, Issuer: "crop-auth", Audience: "crop-inspector"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	noExp := validClaims()
	delete(noExp, "exp")
	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"
	wrongAudience := validClaims()
	wrongAudience["aud"] = "other-service"
	noSubject := validClaims()
	delete(noSubject, "sub")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signHS256(t, "other", validClaims())},
		{"expired", signHS256(t, testSecret, expired)},
		{"no expiry", signHS256(t, testSecret, noExp)},
		{"wrong issuer", signHS256(t, testSecret, wrongIssuer)},
		{"wrong audience", signHS256(t, testSecret, wrongAudience)},
		{"no subject", signHS256(t, testSecret, noSubject)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			if !apperrors.IsType(err, apperrors.ErrorTypeUnauthorized) {
				t.Errorf("Expected unauthorized error, got %v", err)
			}
		})
	}
}

func TestJWTVerifier_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	v, err := NewJWTVerifier(Options{PublicKeyPEM: pubPEM})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Errorf("Expected RS256 token to verify, got %v", err)
	}

	// An HS256 token must not be accepted by an RS256 verifier.
	if _, err := v.Verify(context.Background(), signHS256(t, pubPEM, validClaims())); err == nil {
		t.Error("Expected algorithm confusion to be rejected")
	}
}

func TestNewJWTVerifier_Errors(t *testing.T) {
	if _, err := NewJWTVerifier(Options{}); err == nil {
		t.Error("Expected error without key material")
	}
	if _, err := NewJWTVerifier(Options{PublicKeyPEM: "not pem"}); err == nil {
		t.Error("Expected error for invalid PEM")
	}
}

func TestBearerTokenFromHeader(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def", "abc.def", false},
		{"Bearer   abc ", "abc", false},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := BearerTokenFromHeader(tt.header)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("BearerTokenFromHeader(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v, err := NewJWTVerifier(Options{Secret: testSecret})
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	router.GET("/private", Middleware(v), func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"sub": id.Subject})
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{"missing header", "", http.StatusUnauthorized, "No authorization header"},
		{"not bearer", "Token xyz", http.StatusUnauthorized, "Invalid token"},
		{"bad token", "Bearer xyz", http.StatusUnauthorized, "Invalid token"},
		{"valid", "Bearer " + signHS256(t, testSecret, validClaims()), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if tt.wantError != "" {
				if body["status"] != "error" || body["error"] != tt.wantError {
					t.Errorf("Unexpected error body %v", body)
				}
				return
			}
			if body["sub"] != "grower-1" {
				t.Errorf("Expected identity in context, got %v", body)
			}
		})
	}
}
