package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/noah-isme/invoice-manager/internal/common"
)

const (
	rawKeyBytes = 32
	// KeyIDLength is how many leading characters of the raw key identify it.
	KeyIDLength = 12
)

// Generate mints a raw key (64 hex characters), its public key id and the
// SHA-256 hash that is stored. The raw key is never persisted.
func Generate() (raw, keyID, hash string, err error) {
	buf := make([]byte, rawKeyBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("apikey: read random: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, raw[:KeyIDLength], Hash(raw), nil
}

// Hash returns the stored representation of a raw key.
func Hash(raw string) string {
	return common.Sha256Hex(raw)
}

// Split returns the key id of raw, or "" when raw is too short to be a key.
func Split(raw string) string {
	if len(raw) < KeyIDLength {
		return ""
	}
	return raw[:KeyIDLength]
}
