// Package base62 converts unsigned integers to and from the URL-safe
// base62 alphabet (0-9, A-Z, a-z).
package base62

import (
	"errors"
	"strings"
)

// Alphabet is the full base62 character set, in value order.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = uint64(62)

var ErrInvalidCharacter = errors.New("base62: invalid character")

// Encode returns the base62 representation of n. Encode(0) is "0".
func Encode(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [11]byte // 62^11 > MaxUint64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// Decode parses a base62 string produced by Encode. It does not detect
// overflow beyond uint64; codes longer than 11 characters are rejected.
func Decode(s string) (uint64, error) {
	if s == "" || len(s) > 11 {
		return 0, ErrInvalidCharacter
	}

	var n uint64
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(Alphabet, s[i])
		if v < 0 {
			return 0, ErrInvalidCharacter
		}
		n = n*base + uint64(v)
	}
	return n, nil
}

// Valid reports whether every byte of s belongs to the base62 alphabet.
func Valid(s string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
