package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignWebhookBody computes the signature header value for a payload:
// "sha256=" followed by the hex HMAC-SHA256 of the body under the shared
// secret.
func SignWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a delivery signature in constant time.
func VerifyWebhookSignature(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	want := SignWebhookBody(secret, body)
	return hmac.Equal([]byte(want), []byte(header))
}
