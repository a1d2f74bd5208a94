package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the request body.
const SignatureHeader = "X-Line-Signature"

var (
	// ErrInvalidSignature means a signature was supplied and did not match.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMissingSignature means no signature was supplied while running strict.
	ErrMissingSignature = errors.New("missing signature")
)

// Sign returns the base64 HMAC-SHA256 of body keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verifier checks webhook signatures against the channel secret.
type Verifier struct {
	secret string
	strict bool
}

// NewVerifier builds a Verifier. In strict mode deliveries without a signature
// are rejected; otherwise they are accepted unchecked.
func NewVerifier(secret string, strict bool) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("channel secret is required")
	}
	return &Verifier{secret: secret, strict: strict}, nil
}

// Verify validates signature for body.
func (v *Verifier) Verify(body []byte, signature string) error {
	if signature == "" {
		if v.strict {
			return ErrMissingSignature
		}
		return nil
	}

	expected := Sign(v.secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	return nil
}
