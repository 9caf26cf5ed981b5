package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
)

// SignPayload computes the hex HMAC-SHA256 of a webhook payload. All three
// simulated PSPs sign this way, differing only in the header name.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func VerifySignature(secret string, payload []byte, signature string) error {
	expected := SignPayload(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrWebhookSignatureInvalid
	}
	return nil
}
