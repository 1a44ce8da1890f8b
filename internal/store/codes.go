package store

import (
	"crypto/rand"
	"math/big"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultCodeLength is the length of short-link codes.
const DefaultCodeLength = 6

// NewCode returns a random alphanumeric code of length n.
func NewCode(n int) string {
	if n <= 0 {
		n = DefaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand does not fail on supported platforms
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b)
}
