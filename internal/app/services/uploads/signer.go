package uploads

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/hkdf"
)

const keyInfo = "letsbefriends/uploads/v1"

// Signer computes upload URL signatures with a key derived from the
// configured secret.
type Signer struct {
	key []byte
}

// NewSigner derives the signing key from secret with HKDF-SHA256.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("upload signing secret is required")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive upload key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Sign returns the hex HMAC of key|expires|contentType.
func (s *Signer) Sign(objectKey string, expires int64, contentType string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(objectKey + "|" + strconv.FormatInt(expires, 10) + "|" + contentType))
	return hex.EncodeToString(mac.Sum(nil))
}

// Valid reports whether sig matches the signature of the inputs.
func (s *Signer) Valid(objectKey string, expires int64, contentType, sig string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(objectKey, expires, contentType))
	return hmac.Equal(got, want)
}
