// Package tokens generates the opaque random strings used as authorization
// codes.
package tokens

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alnum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// AuthCodeLength is the length of generated authorization codes.
const AuthCodeLength = 20

// GenerateAuthCode returns a random alphanumeric string of AuthCodeLength
// characters, drawn from crypto/rand.
func GenerateAuthCode() (string, error) {
	return GenerateAlphanumeric(AuthCodeLength)
}

// GenerateAlphanumeric returns a random [0-9A-Za-z] string of length n.
func GenerateAlphanumeric(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid length %d", n)
	}
	max := big.NewInt(int64(len(alnum)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alnum[idx.Int64()]
	}
	return string(out), nil
}
