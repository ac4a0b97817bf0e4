package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HMACVerifier accepts events signed with a hex encoded HMAC-SHA256 of the
// raw body, the scheme most providers without an SDK use. Bodies are decoded
// with the same event schema as Stripe.
type HMACVerifier struct{}

// Verify implements EventVerifier.
func (HMACVerifier) Verify(rawBody []byte, signature, secret string) (*Event, error) {
	if signature == "" || secret == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	if !hmac.Equal(got, SignHMAC(rawBody, secret)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return decodeStripeEvent(rawBody)
}

// SignHMAC returns the HMAC-SHA256 of body keyed with secret.
func SignHMAC(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
