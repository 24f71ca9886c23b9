// Package webhook provides webhook delivery, signing, and target
// validation.
package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	ErrInvalidSignature     = errors.New("invalid signature")
)

// DefaultReplayWindow is how far a delivery timestamp may drift from the
// receiver's clock before verification rejects it.
const DefaultReplayWindow = 5 * time.Minute

// GenerateSignature signs a payload as hex HMAC-SHA256 over the
// canonical string "{timestamp}.{payloadJSON}". Binding the timestamp
// into the MAC is what makes the replay window enforceable.
func GenerateSignature(secret string, timestamp int64, payloadJSON []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payloadJSON)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateSignature is the receiver-side check: the timestamp must fall
// inside the replay window and the signature must match in constant
// time.
func ValidateSignature(secret, signature string, timestamp int64, payloadJSON []byte, replayWindow time.Duration) error {
	drift := time.Now().Unix() - timestamp
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(replayWindow.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := GenerateSignature(secret, timestamp, payloadJSON)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// GenerateSecret returns a 256-bit random signing secret, hex-encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
