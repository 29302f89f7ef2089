package httpx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var errBadSignature = errors.New("invalid webhook signature")

// signatureManifest is the string the gateway signs for a notification.
func signatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

// verifySignature checks an x-signature header of the form "ts=...,v1=...".
func verifySignature(secret, header, dataID, requestID string) error {
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
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
	if ts == "" || v1 == "" {
		return errBadSignature
	}
	got, err := hex.DecodeString(v1)
	if err != nil {
		return errBadSignature
	}
	if !hmac.Equal(got, sign(secret, signatureManifest(dataID, requestID, ts))) {
		return errBadSignature
	}
	return nil
}

func sign(secret, manifest string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return mac.Sum(nil)
}
