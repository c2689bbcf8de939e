package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHMACVerify(t *testing.T) {
	secret := "super-secret"
	body := []byte(`{"campaign_id":"summer-25"}`)

	sig := ComputeSignature(secret, body)
	require.Len(t, sig, 64)
	require.True(t, VerifySignature(secret, body, sig))
	require.False(t, VerifySignature(secret, body, "deadbeef"))
	require.False(t, VerifySignature(secret, body, "not-hex"))
	require.False(t, VerifySignature("other", body, sig))
}

func TestCheck(t *testing.T) {
	body := []byte(`{}`)
	cred := Credential{APIKey: "key-1", HMACSecret: "s3cret"}

	require.ErrorIs(t, Check(cred, "", "", body), ErrInvalidAPIKey)
	require.ErrorIs(t, Check(cred, "wrong", "", body), ErrInvalidAPIKey)
	require.ErrorIs(t, Check(cred, "key-1", "", body), ErrInvalidSignature)
	require.NoError(t, Check(cred, "key-1", ComputeSignature("s3cret", body), body))

	require.NoError(t, Check(Credential{APIKey: "key-1"}, "key-1", "", body))
}
