package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Signer produces and checks temporary URL signatures for local disks.
type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key), now: time.Now}
}

// Sign returns the expiry (unix seconds) and hex signature for disk/p.
func (s *Signer) Sign(disk, p string, expiresAt time.Time) (int64, string) {
	expires := expiresAt.Unix()
	return expires, s.mac(disk, p, expires)
}

func (s *Signer) Verify(disk, p, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || signature == "" {
		return ErrInvalidSignature
	}
	want, err := hex.DecodeString(s.mac(disk, p, exp))
	if err != nil {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(want, got) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > exp {
		return ErrSignatureExpired
	}
	return nil
}

func (s *Signer) mac(disk, p string, expires int64) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(disk + "|" + p + "|" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
