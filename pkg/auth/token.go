package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Tokens are HS256 only; anything else is rejected before the key is consulted.
var signingMethod = jwt.SigningMethodHS256

var (
	ErrNoSecret       = errors.New("jwt secret is required")
	ErrNoIssuer       = errors.New("jwt issuer is required")
	ErrSellerNeedShop = errors.New("seller tokens require a shop id")
)

func checkIdentity(userID uuid.UUID, role enums.UserRole, shopID *uuid.UUID) error {
	switch {
	case userID == uuid.Nil:
		return errors.New("missing user id")
	case !role.IsValid():
		return fmt.Errorf("invalid user role %q", role)
	case role == enums.UserRoleSeller && shopID == nil:
		return ErrSellerNeedShop
	}
	return nil
}

// MintAccessToken signs a token for payload valid for ttl from now. Production
// tokens come from the identity service; this produces the same format for
// tooling and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrNoSecret
	case cfg.Issuer == "":
		return "", ErrNoIssuer
	case ttl <= 0:
		return "", errors.New("jwt ttl must be positive")
	}
	if err := checkIdentity(payload.UserID, payload.Role, payload.ShopID); err != nil {
		return "", err
	}

	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		ShopID: payload.ShopID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then checks the identity
// claims make sense together.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}

	var claims AccessTokenClaims
	key := func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil }
	if _, err := jwt.ParseWithClaims(raw, &claims, key,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	); err != nil {
		return nil, err
	}
	if err := checkIdentity(claims.UserID, claims.Role, claims.ShopID); err != nil {
		return nil, fmt.Errorf("token claims: %w", err)
	}
	return &claims, nil
}
