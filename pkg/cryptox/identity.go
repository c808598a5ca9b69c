package cryptox

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CRYPTO")

var (
	CodeSignFailed       = ErrRegistry.Register("SIGN_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token signing failed")
	CodeInvalidSignature = ErrRegistry.Register("INVALID_SIGNATURE", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid token")
	CodeExpired          = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid token")
)

func ErrSignFailed() *errx.Error       { return ErrRegistry.New(CodeSignFailed) }
func ErrInvalidSignature() *errx.Error { return ErrRegistry.New(CodeInvalidSignature) }
func ErrExpired() *errx.Error          { return ErrRegistry.New(CodeExpired) }

// ============================================================================
// Identity Signer
// ============================================================================

// IdentitySigner firma y verifica tokens compactos de identidad usando JWT
type IdentitySigner struct {
	secretKey []byte
	issuer    string
}

// NewIdentitySigner crea una nueva instancia del firmador
func NewIdentitySigner(secretKey string, issuer string) *IdentitySigner {
	if issuer == "" {
		issuer = "gatekit"
	}
	return &IdentitySigner{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}
}

// identityClaims son los claims firmados. Solo identidad estable: nunca rol,
// estado ni plan.
type identityClaims struct {
	TenantID kernel.TenantID `json:"tenant_id"`
	Email    string          `json:"email"`
	jwt.RegisteredClaims
}

// SignIdentity genera un token firmado con la identidad y una validez fija
func (s *IdentitySigner) SignIdentity(identity kernel.Identity, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := identityClaims{
		TenantID: identity.TenantID,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", ErrSignFailed().WithDetail("error", err.Error())
	}

	return tokenString, nil
}

// VerifyIdentity valida y decodifica un token de identidad. Un token
// forjado o expirado nunca produce claims; la causa (firma vs expiración)
// se distingue internamente por código de error, pero ambos mensajes son
// idénticos de cara al cliente.
func (s *IdentitySigner) VerifyIdentity(tokenString string) (*kernel.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (any, error) {
		// Verificar el método de firma
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errx.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired()
		}
		return nil, ErrInvalidSignature()
	}

	if !token.Valid {
		return nil, ErrInvalidSignature()
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok {
		return nil, ErrInvalidSignature()
	}

	identity := kernel.Identity{
		TenantID: claims.TenantID,
		Email:    claims.Email,
	}
	if !identity.IsValid() {
		return nil, ErrInvalidSignature()
	}

	return &identity, nil
}
