package middleware

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// HMACVerifier validates HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier builds a verifier. An empty issuer skips the iss check.
func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates the token.
func (v *HMACVerifier) Verify(_ context.Context, tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	claims.Role = normalizeRole(string(claims.Role))
	return claims, nil
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier validates Firebase Auth ID tokens. The role comes from the
// "role" custom claim, or "admin": true.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier wraps a Firebase auth client.
func NewFirebaseVerifier(client idTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify checks the ID token with Firebase and maps it onto claims.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*models.JWTClaims, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid id token")
	}
	claims := &models.JWTClaims{
		UserID:   token.UID,
		Email:    stringClaim(token.Claims, "email"),
		FullName: stringClaim(token.Claims, "name"),
		Role:     normalizeRole(stringClaim(token.Claims, "role")),
	}
	if admin, ok := token.Claims["admin"].(bool); ok && admin {
		claims.Role = models.RoleAdmin
	}
	claims.Subject = token.UID
	claims.Issuer = token.Issuer
	return claims, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	if value, ok := claims[key]; ok && value != nil {
		return fmt.Sprint(value)
	}
	return ""
}

func normalizeRole(role string) models.UserRole {
	if strings.EqualFold(strings.TrimSpace(role), string(models.RoleAdmin)) {
		return models.RoleAdmin
	}
	return models.RoleStudent
}
