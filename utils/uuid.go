package utils

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateNonce returns a random hex nonce for interact.finish.
func GenerateNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
