package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
)

func TestGenerateAndParseToken(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleManager}

	token, err := auth.GenerateToken("secret", "outlay", id, time.Hour)
	require.NoError(t, err)

	got, err := auth.ParseToken("secret", "outlay", token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.True(t, got.CanApprove())
	assert.False(t, got.IsAdmin())
}

func TestParseToken_Rejects(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleEmployee}

	valid, err := auth.GenerateToken("secret", "outlay", id, time.Hour)
	require.NoError(t, err)

	expired, err := auth.GenerateToken("secret", "outlay", id, -time.Minute)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID:           id.UserID.String(),
		CompanyID:        id.CompanyID.String(),
		Role:             "owner",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "outlay"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		issuer string
		token  string
	}{
		{name: "WrongSecret", secret: "other", issuer: "outlay", token: valid},
		{name: "WrongIssuer", secret: "secret", issuer: "someone-else", token: valid},
		{name: "Expired", secret: "secret", issuer: "outlay", token: expired},
		{name: "UnknownRole", secret: "secret", issuer: "outlay", token: badRole},
		{name: "Garbage", secret: "secret", issuer: "outlay", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ParseToken(tt.secret, tt.issuer, tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
