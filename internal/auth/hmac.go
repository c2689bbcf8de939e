// Package auth verifies that pushes to the ingest API come from a registered adapter.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

var (
	ErrUnknownAdapter   = errors.New("unknown adapter")
	ErrInvalidAPIKey    = errors.New("missing or invalid api key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Credential is what an adapter must present.
type Credential struct {
	APIKey     string
	HMACSecret string
}

// ComputeSignature returns the lowercase hex encoded HMAC-SHA256 signature for body.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a received signature with a freshly computed one.
func VerifySignature(secret string, body []byte, candidate string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	candidateBytes, err := hex.DecodeString(candidate)
	if err != nil {
		return false
	}
	return hmac.Equal(mac.Sum(nil), candidateBytes)
}

// Check authenticates a request body against cred. The signature is only required when
// the adapter has a secret.
func Check(cred Credential, apiKey, signature string, body []byte) error {
	if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(cred.APIKey)) != 1 {
		return ErrInvalidAPIKey
	}
	if cred.HMACSecret == "" {
		return nil
	}
	if signature == "" || !VerifySignature(cred.HMACSecret, body, signature) {
		return ErrInvalidSignature
	}
	return nil
}
