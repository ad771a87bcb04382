package rooms

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "0123456789"

const codeLength = 5

// GenerateCode returns a random 5-digit room code, leading zeros included.
func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
