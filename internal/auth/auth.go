package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/directory"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the application claims carried in a bearer token.
type Claims struct {
	UserID    string `json:"uid"`
	CompanyID string `json:"cid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller resolved from a token.
type Identity struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      directory.Role
}

// CanApprove reports whether the caller may act on approvals.
func (i Identity) CanApprove() bool {
	return i.Role == directory.RoleManager || i.Role == directory.RoleAdmin
}

func (i Identity) IsAdmin() bool {
	return i.Role == directory.RoleAdmin
}

func GenerateToken(secret, issuer string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:    id.UserID.String(),
		CompanyID: id.CompanyID.String(),
		Role:      string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// ParseToken verifies an HS256 token and resolves the caller's identity.
func ParseToken(secret, issuer, tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	var claims Claims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad uid", ErrInvalidToken)
	}

	companyID, err := uuid.Parse(claims.CompanyID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad cid", ErrInvalidToken)
	}

	role := directory.Role(claims.Role)
	switch role {
	case directory.RoleEmployee, directory.RoleManager, directory.RoleAdmin:
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return Identity{UserID: userID, CompanyID: companyID, Role: role}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
