// Package paymentstest builds signed webhook fixtures.
package paymentstest

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/imrishuroy/digital-marketplace/internal/payments"
)

// Completed describes a checkout.session.completed fixture.
type Completed struct {
	EventID  string
	OrderID  string
	UserID   string
	Email    string
	City     string
	Metadata map[string]string // overrides OrderID/UserID when set
}

// CompletedEvent returns the JSON body of a checkout.session.completed event.
func CompletedEvent(c Completed) []byte {
	md := c.Metadata
	if md == nil {
		md = map[string]string{"userId": c.UserID, "orderId": c.OrderID}
	}
	address := map[string]interface{}{
		"line1":       "Unter den Linden 1",
		"city":        c.City,
		"country":     "DE",
		"postal_code": "10117",
		"state":       "",
	}
	session := map[string]interface{}{
		"id":       "cs_test_" + c.OrderID,
		"object":   "checkout.session",
		"metadata": md,
		"customer_details": map[string]interface{}{
			"email":   c.Email,
			"name":    "Ada Lovelace",
			"address": address,
		},
		"shipping_details": map[string]interface{}{
			"name":    "Ada Lovelace",
			"address": address,
		},
	}
	return event(c.EventID, payments.EventCheckoutCompleted, session)
}

// Event returns the JSON body of an event of any type with an empty object.
func Event(id, typ string) []byte {
	return event(id, typ, map[string]interface{}{"id": "obj_1", "object": "unknown"})
}

func event(id, typ string, object map[string]interface{}) []byte {
	body, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"object":  "event",
		"type":    typ,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return body
}

// StripeSignature returns a valid Stripe-Signature header for body.
func StripeSignature(body []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

// HMACSignature returns the hex HMAC-SHA256 signature of body.
func HMACSignature(body []byte, secret string) string {
	return hex.EncodeToString(payments.SignHMAC(body, secret))
}
