package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// parseSignatureHeader splits a header of comma-separated key=value pairs
// and returns the ts and v1 fields. Either may be empty if absent.
func parseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	return ts, v1
}

// buildManifest reconstructs the canonical string the sender signed. The
// field order and trailing separator must match the provider's signing
// template exactly: "id:{id};request-id:{requestID};ts:{ts};".
func buildManifest(eventID, requestID, ts string) string {
	return "id:" + eventID + ";request-id:" + requestID + ";ts:" + ts + ";"
}

// VerifySignature checks the x-signature header of an inbound notification.
// The header carries a unix timestamp and a hex HMAC-SHA256 of the manifest
// keyed by the shared webhook secret. Any missing input fails closed.
func VerifySignature(signatureHeader, requestID, eventID, secret string) bool {
	ts, v1 := parseSignatureHeader(signatureHeader)
	if ts == "" || v1 == "" || requestID == "" || eventID == "" || secret == "" {
		return false
	}

	provided, err := hex.DecodeString(v1)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(buildManifest(eventID, requestID, ts)))
	return hmac.Equal(mac.Sum(nil), provided)
}
