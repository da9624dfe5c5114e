// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const ResetTokenLength = 40

func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateResetToken returns an opaque password-reset token.
func GenerateResetToken() (string, error) {
	return GenerateRandomString(ResetTokenLength)
}
