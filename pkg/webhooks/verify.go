package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/davemejos/mediasync/pkg/errcodes"
)

// SignatureHeader and TimestampHeader carry the provider's HMAC
// authentication. The signature covers `timestamp + "\n" + body` so a
// captured body can't be replayed under a fresh timestamp.
const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"
)

func verifySignature(secret, timestamp, signature string, body []byte, now time.Time, maxSkew time.Duration) error {
	if timestamp == "" || signature == "" {
		return errcodes.Unauthorized("Missing webhook auth headers.")
	}

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return errcodes.Unauthorized("Invalid webhook timestamp.")
	}
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > maxSkew {
		return errcodes.Unauthorized("Webhook timestamp outside accepted window.")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errcodes.Unauthorized("Webhook signature mismatch.")
	}

	return nil
}

// Sign computes the signature the provider is expected to send. Exposed
// for tests and for local tooling that emits synthetic webhooks.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
