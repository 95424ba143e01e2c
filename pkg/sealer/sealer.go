// Package sealer mints opaque confirmation codes for reservations. The code
// encrypts the reservation and owner ids together, so presenting a valid
// code proves the holder received it at booking time without any extra
// lookup table.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	envKey      = "SEALER_KEY"
	fallbackKey = "lfQVRuulcL2iOhOJ2r8BYTweoSKwVAJnIF9U+AL+M60="
)

func sealKey() ([]byte, error) {
	encoded := os.Getenv(envKey)
	if encoded == "" {
		encoded = fallbackKey
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func CreateConfirmationCode(reservationID string, ownerID string) (string, error) {
	plaintext := []byte(reservationID + ":" + ownerID)

	key, err := sealKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

func ParseConfirmationCode(code string) (string, string, error) {
	key, err := sealKey()
	if err != nil {
		return "", "", err
	}

	data, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return "", "", fmt.Errorf("malformed confirmation code: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	if len(data) < aesgcm.NonceSize() {
		return "", "", fmt.Errorf("confirmation code too short")
	}

	nonce, ct := data[:aesgcm.NonceSize()], data[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", "", fmt.Errorf("invalid confirmation code: %w", err)
	}

	parts := strings.SplitN(string(plaintext), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid confirmation code payload")
	}

	return parts[0], parts[1], nil
}
