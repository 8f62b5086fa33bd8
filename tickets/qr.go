package tickets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDrift = 5 * time.Minute
	// PrintedValidity bounds how long after printing a paper ticket scans.
	PrintedValidity = 30 * 24 * time.Hour
)

var (
	ErrMalformedQR = errors.New("invalid QR format")
	ErrExpiredQR   = errors.New("ticket expired or from the future")
	ErrQRSignature = errors.New("invalid QR signature")
)

// Signer produces and checks QR payloads of the form
// saleID|eventID|unixTimestamp|base64(HMAC-SHA256).
//
// Screen codes are signed with the ticket secret and live for drift.
// Printed codes are signed with a key derived from it and stay valid for
// PrintedValidity after issue.
type Signer struct {
	secret   []byte
	printKey []byte
	drift    time.Duration
}

func NewSigner(secret string, drift time.Duration) *Signer {
	if drift <= 0 {
		drift = DefaultDrift
	}
	return &Signer{
		secret:   []byte(secret),
		printKey: []byte(mac([]byte(secret), "printed-ticket")),
		drift:    drift,
	}
}

func mac(key []byte, data string) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *Signer) sign(data string) string { return mac(s.secret, data) }

// GeneratePrintedPayload signs a code for a paper ticket issued at issued.
func (s *Signer) GeneratePrintedPayload(saleID, eventID string, issued time.Time) string {
	data := fmt.Sprintf("%s|%s|%d", saleID, eventID, issued.Unix())
	return data + "|" + mac(s.printKey, data)
}

func (s *Signer) GenerateQRPayload(saleID, eventID string, at time.Time) string {
	data := fmt.Sprintf("%s|%s|%d", saleID, eventID, at.Unix())
	return data + "|" + s.sign(data)
}

func (s *Signer) VerifyQRPayload(payload string, now time.Time) (saleID, eventID string, err error) {
	parts := strings.Split(strings.TrimSpace(payload), "|")
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedQR
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", ErrMalformedQR
	}

	data := strings.Join(parts[:3], "|")
	sig := []byte(parts[3])
	validity := s.drift
	switch {
	case hmac.Equal(sig, []byte(s.sign(data))):
	case hmac.Equal(sig, []byte(mac(s.printKey, data))):
		validity = PrintedValidity
	default:
		return "", "", ErrQRSignature
	}

	delta := now.Sub(time.Unix(ts, 0))
	if delta < -s.drift || delta > validity {
		return "", "", ErrExpiredQR
	}
	return parts[0], parts[1], nil
}
