package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"YcrudAPI/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Unix(1730000000, 0)

func hsConfig() config.JWTConfig {
	return config.JWTConfig{
		ValidationType: "HS256",
		Issuer:         "auth-service",
		Audience:       "ycrud-api",
		HMACSecret:     "super-secret",
	}
}

func validClaims(cfg config.JWTConfig) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": cfg.Issuer,
		"aud": cfg.Audience,
		"iat": testNow.Unix() - 10,
		"nbf": testNow.Unix() - 5,
		"exp": testNow.Unix() + 30,
		"sub": "user-1",
	}
}

func newValidator(t *testing.T, cfg config.JWTConfig) *JWTValidator {
	t.Helper()
	v, err := NewJWTValidator(cfg)
	if err != nil {
		t.Fatalf("NewJWTValidator failed: %v", err)
	}
	v.clockFunc = func() time.Time { return testNow }
	return v
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return token
}

func publicPEM(t *testing.T, pub any) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestHS256ValidateToken(t *testing.T) {
	cfg := hsConfig()
	v := newValidator(t, cfg)

	claims, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), validClaims(cfg)))
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims["sub"] != "user-1" {
		t.Fatalf("unexpected sub: %v", claims["sub"])
	}
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := hsConfig()
	v := newValidator(t, cfg)

	claims := validClaims(cfg)
	claims["iat"] = testNow.Unix() - 20
	claims["nbf"] = testNow.Unix() - 20
	claims["exp"] = testNow.Unix() - 1

	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), claims)); err == nil {
		t.Fatalf("expected expired error")
	}
}

func TestValidateTokenLeeway(t *testing.T) {
	cfg := hsConfig()
	cfg.ClockSkewSec = 60
	v := newValidator(t, cfg)

	claims := validClaims(cfg)
	claims["exp"] = testNow.Unix() - 30

	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), claims)); err != nil {
		t.Fatalf("expected token inside leeway to pass: %v", err)
	}
}

func TestValidateTokenRejectsWrongAudience(t *testing.T) {
	cfg := hsConfig()
	v := newValidator(t, cfg)

	claims := validClaims(cfg)
	claims["aud"] = "another-api"

	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), claims)); err == nil {
		t.Fatalf("expected audience error")
	}
}

func TestValidateTokenRequiresNotBefore(t *testing.T) {
	cfg := hsConfig()
	v := newValidator(t, cfg)

	claims := validClaims(cfg)
	delete(claims, "nbf")

	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(cfg.HMACSecret), claims)); err == nil {
		t.Fatalf("expected missing nbf error")
	}
}

func TestValidateTokenRejectsOtherAlgorithm(t *testing.T) {
	cfg := hsConfig()
	v := newValidator(t, cfg)

	token := sign(t, jwt.SigningMethodHS384, []byte(cfg.HMACSecret), validClaims(cfg))
	if _, err := v.ValidateToken(token); err == nil {
		t.Fatalf("expected algorithm mismatch error")
	}
}

func TestRS256ValidateToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	cfg := config.JWTConfig{
		ValidationType: "RS256",
		Issuer:         "auth-service",
		Audience:       "ycrud-api",
		PublicKeyPEM:   publicPEM(t, &priv.PublicKey),
	}
	v := newValidator(t, cfg)

	claims, err := v.ValidateToken(sign(t, jwt.SigningMethodRS256, priv, validClaims(cfg)))
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims["iss"] != cfg.Issuer {
		t.Fatalf("unexpected iss: %v", claims["iss"])
	}
}

func TestES256ValidateToken(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	cfg := config.JWTConfig{
		ValidationType: "ES256",
		Issuer:         "auth-service",
		Audience:       "ycrud-api",
		PublicKeyPEM:   publicPEM(t, &priv.PublicKey),
	}
	v := newValidator(t, cfg)

	if _, err := v.ValidateToken(sign(t, jwt.SigningMethodES256, priv, validClaims(cfg))); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
}

func TestNewJWTValidatorRequiresIssuer(t *testing.T) {
	cfg := hsConfig()
	cfg.Issuer = ""
	if _, err := NewJWTValidator(cfg); err == nil {
		t.Fatalf("expected issuer error")
	}
}

func TestClaimsContextRoundTrip(t *testing.T) {
	ctx := WithClaims(context.Background(), map[string]any{"sub": "u1"})
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims["sub"] != "u1" {
		t.Fatalf("claims not found in context: %v %v", claims, ok)
	}
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Fatalf("unexpected claims in empty context")
	}
}
