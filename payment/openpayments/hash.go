package openpayments

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// InteractionHash computes the hash an authorization server appends to the
// finish redirect: base64(sha256(clientNonce\nfinishNonce\ninteractRef\ngrantEndpoint)).
func InteractionHash(clientNonce, finishNonce, interactRef, grantEndpoint string) string {
	sum := sha256.Sum256([]byte(clientNonce + "\n" + finishNonce + "\n" + interactRef + "\n" + grantEndpoint))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyInteractionHash reports whether hash matches the expected value.
func VerifyInteractionHash(hash, clientNonce, finishNonce, interactRef, grantEndpoint string) bool {
	want := InteractionHash(clientNonce, finishNonce, interactRef, grantEndpoint)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(want)) == 1
}
