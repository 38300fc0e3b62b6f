package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// HashPassword derives an scrypt key for plain with a fresh random salt and
// returns both hex encoded.  n is the scrypt cost (a power of two).
func HashPassword(plain string, n int) (hash, salt string, err error) {
	s := make([]byte, saltLen)
	if _, err := rand.Read(s); err != nil {
		return "", "", err
	}
	key, err := scrypt.Key([]byte(plain), s, n, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(key), hex.EncodeToString(s), nil
}

// VerifyPassword recomputes the key for plain and compares it in constant
// time with the stored hash.
func VerifyPassword(hash, salt, plain string, n int) bool {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	s, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	got, err := scrypt.Key([]byte(plain), s, n, scryptR, scryptP, len(want))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}
