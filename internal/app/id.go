package app

import (
	"crypto/rand"
	"encoding/hex"
)

// generateID produces a random 32-character hex identifier. Isolated here so
// the ID strategy can evolve independently of the services.
func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
