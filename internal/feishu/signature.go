// Package feishu holds the Feishu-facing collaborators: webhook signature
// verification and the tenant access token used to fetch private images.
package feishu

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifySignature checks a webhook request signature. Feishu signs
// sha256(timestamp + nonce + verification_token + body) and sends the hex
// digest in the X-Lark-Signature header. An empty configured token
// disables verification and always passes.
func VerifySignature(verificationToken, timestamp, nonce string, body []byte, signature string) bool {
	if verificationToken == "" {
		return true
	}

	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(nonce))
	h.Write([]byte(verificationToken))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
