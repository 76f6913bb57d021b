package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNoSecret is returned when signing or verifying is attempted without
// a configured shared secret.
var ErrNoSecret = errors.New("webhook: secret not configured")

// Sign computes the HMAC-SHA256 signature over body (already-canonical
// JSON bytes) using secret, returning the "sha256=<hex>" header value
// exactly as original_source/app/utils/signatures.py's
// generate_webhook_signature does.
func Sign(secret string, body []byte) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature over body and compares it to header
// using a constant-time comparison, mirroring
// verify_webhook_signature/hmac.compare_digest in the original source.
func Verify(secret string, body []byte, header string) bool {
	expected, err := Sign(secret, body)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(header))
}
