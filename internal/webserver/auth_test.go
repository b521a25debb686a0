package webserver

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medicore/hms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateToken(t *testing.T) {
	token, expires, err := CreateToken("secret", domain.SysOpr{ID: 42, Username: "nurse", Level: domain.LevelReception}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims := new(JwtClaims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "42", claims.Uid)
	assert.Equal(t, "nurse", claims.Username)
	assert.Equal(t, domain.LevelReception, claims.Level)

	_, err = jwt.ParseWithClaims(token, new(JwtClaims), func(*jwt.Token) (interface{}, error) {
		return []byte("other"), nil
	})
	assert.Error(t, err)
}

func TestValidator(t *testing.T) {
	type payload struct {
		Date  string `validate:"required,date"`
		Start string `validate:"omitempty,clock"`
	}
	v := NewValidator()
	assert.NoError(t, v.Validate(&payload{Date: "2024-05-01", Start: "09:30"}))
	assert.Error(t, v.Validate(&payload{Date: "05/01/2024"}))
	assert.Error(t, v.Validate(&payload{Date: "2024-05-01", Start: "25:00"}))
}
