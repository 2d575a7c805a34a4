package squarewebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries Square's HMAC-SHA256 notification signature.
const SignatureHeader = "X-Square-Hmacsha256-Signature"

// VerifySignature checks header against the base64 HMAC-SHA256 of the notification
// URL followed by the raw body, keyed with the subscription signature key.
func VerifySignature(body []byte, notificationURL, signatureKey, header string) bool {
	if header == "" || signatureKey == "" || notificationURL == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, notificationURL, signatureKey)), []byte(header))
}

// Sign computes the signature Square would send for body.
func Sign(body []byte, notificationURL, signatureKey string) string {
	mac := hmac.New(sha256.New, []byte(signatureKey))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
