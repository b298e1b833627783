package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "tabletloan", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{Operator: "it-admin", Name: "IT Office"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "it-admin", claims.Identity())
	assert.Equal(t, "IT Office", claims.Name)
	assert.Equal(t, "tabletloan", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{Operator: "it-admin"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Operator: "it-admin"})
	require.NoError(t, err)

	wrongSecret := cfg
	wrongSecret.Secret = "other"
	_, err = ParseAccessToken(wrongSecret, token)
	assert.Error(t, err)

	wrongIssuer := cfg
	wrongIssuer.Issuer = "someone-else"
	_, err = ParseAccessToken(wrongIssuer, token)
	assert.Error(t, err)
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{})
	assert.Error(t, err)

	_, err = MintAccessToken(config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, time.Now(), AccessTokenPayload{Operator: "a"})
	assert.Error(t, err)
}

func TestIdentityFallsBackToSubject(t *testing.T) {
	claims := &AccessTokenClaims{}
	claims.Subject = "sub-1"
	assert.Equal(t, "sub-1", claims.Identity())
	assert.Equal(t, "", (*AccessTokenClaims)(nil).Identity())
}

func TestOperatorContext(t *testing.T) {
	ctx := WithOperator(nil, "it-admin") //nolint:staticcheck
	assert.Equal(t, "it-admin", OperatorFromContext(ctx))
	require.NotNil(t, OperatorPtr(ctx))
	assert.Nil(t, OperatorPtr(WithOperator(ctx, "")))
}
