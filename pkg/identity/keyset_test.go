package identity_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/P-U-C/b1e55ed/pkg/identity"
)

func TestInMemoryKeySet_SignsAndVerifiesWithTheActiveKey(t *testing.T) {
	ks, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{Subject: "operator-1"}
	signed, err := ks.Sign(context.Background(), claims)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, ks.KeyFunc())
	require.NoError(t, err)
	require.True(t, parsed.Valid)
}

func TestInMemoryKeySet_Rotate_OldTokensStillVerifyUntilEvicted(t *testing.T) {
	ks, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{Subject: "operator-1"}
	signed, err := ks.Sign(context.Background(), claims)
	require.NoError(t, err)

	require.NoError(t, ks.Rotate())

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, ks.KeyFunc())
	require.NoError(t, err, "a token signed under the previous key must still verify right after rotation")
	require.True(t, parsed.Valid)
}

func TestInMemoryKeySet_KeyFunc_RejectsAnUnknownKeyID(t *testing.T) {
	ks, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{Subject: "operator-1"}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = "never-issued"

	_, err = ks.KeyFunc()(token)
	require.Error(t, err)
}

func TestInMemoryKeySet_KeyFunc_RejectsAWrongSigningMethod(t *testing.T) {
	ks, err := identity.NewInMemoryKeySet()
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	_, err = ks.KeyFunc()(token)
	require.Error(t, err)
}
