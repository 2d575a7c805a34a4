package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	ShopID *uuid.UUID
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by clients. Sellers carry
// the shop they operate.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	ShopID *uuid.UUID     `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the verified caller handed to services.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	ShopID *uuid.UUID
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// OwnsShop reports whether the actor operates shopID.
func (a Actor) OwnsShop(shopID uuid.UUID) bool {
	return a.ShopID != nil && *a.ShopID == shopID
}

// Actor converts verified claims into a service-facing actor.
func (c *AccessTokenClaims) Actor() Actor {
	return Actor{UserID: c.UserID, Role: c.Role, ShopID: c.ShopID}
}
