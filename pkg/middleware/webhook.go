package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"hostel-booking/pkg/utils"

	"go.uber.org/zap"
)

const (
	SignatureHeader    = "X-Callback-Signature"
	maxWebhookBodySize = 1 << 20
)

// WebhookSignature checks the hex HMAC-SHA256 of the body when a secret is
// configured. With no secret the endpoint relies on network-level trust.
func WebhookSignature(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	key := []byte(strings.TrimSpace(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
			if err != nil {
				utils.ResponseBadRequest(w, "Unreadable body", nil)
				return
			}
			r.Body.Close()

			if !ValidSignature(key, body, r.Header.Get(SignatureHeader)) {
				logger.Warn("Webhook signature mismatch", zap.String("ip", clientID(r)))
				utils.ResponseUnauthorized(w, "Invalid signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func ValidSignature(key, body []byte, signature string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
