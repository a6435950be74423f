package attribution

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// HeaderHMAC carries Shopify's webhook signature.
const HeaderHMAC = "X-Shopify-Hmac-Sha256"

// Sign returns base64(HMAC-SHA256(secret, body)), the value Shopify puts in
// HeaderHMAC.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature checks header against body. With no secret configured
// every request passes; that mode is for local development only.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}
