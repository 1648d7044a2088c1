package keyed

import (
	digest "github.com/opencontainers/go-digest"
)

// Key maps an arbitrary identifier to a cache key: the hex SHA-256 of id.
// The result is 64 lowercase hex characters, which is always a valid key.
func Key(id string) string {
	return digest.SHA256.FromString(id).Encoded()
}
