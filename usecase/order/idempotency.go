package order

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
)

// idempotencyKey binds the client key to the caller: the user id when
// authenticated, the checkout email otherwise. Two shoppers sending the same
// key never share a slot.
func idempotencyKey(in CreateInput) string {
	scope := "email:" + strings.ToLower(strings.TrimSpace(in.Email))
	if in.UserID != nil && *in.UserID != "" {
		scope = "user:" + *in.UserID
	}
	return digest(scope, in.IdempotencyKey)
}

// fingerprint identifies the request body a key was first used with. The
// referral marker is left out; attribution is decided once by the original.
func fingerprint(in CreateInput) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(in.Email)),
		strings.TrimSpace(in.ShippingName),
		strings.TrimSpace(in.ShippingAddress),
		strings.TrimSpace(in.ShippingCity),
		strings.TrimSpace(in.ShippingState),
		strings.TrimSpace(in.ShippingZip),
	}
	for _, item := range in.Items {
		parts = append(parts, item.ProductID, strconv.Itoa(item.Quantity))
	}
	return digest(parts...)
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		// length prefix keeps ("ab","c") and ("a","bc") apart
		_, _ = io.WriteString(h, strconv.Itoa(len(p)))
		_, _ = io.WriteString(h, ":")
		_, _ = io.WriteString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
