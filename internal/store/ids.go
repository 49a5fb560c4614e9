package store

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

// Id prefixes per table. Clients rely on these never starting with "tmp-".
const (
	prefixUser     = "usr"
	prefixCategory = "cat"
	prefixProduct  = "prd"
)

// newRandomID returns prefix-<suffix> where suffix is 8 chars of base32 (lowercase, no padding).
func newRandomID(prefix string) (string, error) {
	var b [5]byte // 40 bits -> 8 base32 chars
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return prefix + "-" + strings.ToLower(enc.EncodeToString(b[:])), nil
}
