package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SignVerify(t *testing.T) {
	svc := NewService([]byte("secret"))

	tok, err := svc.Sign("u1", "Alice", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Alice", claims.DisplayName)
}

func TestService_VerifyRejects(t *testing.T) {
	svc := NewService([]byte("secret"))

	expired, err := svc.Sign("u1", "Alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewService([]byte("other")).Sign("u1", "Alice", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong_secret", token: foreign},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Verify(tc.token)
			assert.Error(t, err)
		})
	}
}
