package domain

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const PublicIDPrefix = "clytar"

// 90000 five-digit blocks times 9000 four-digit blocks.
const publicIDSpace = 90000 * 9000

// NewPublicID generates a human-readable project id, e.g. "clytar-12345-6789".
// Repositories retry on the rare collision.
func NewPublicID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("project id: %w", err)
	}
	n := binary.BigEndian.Uint64(buf[:]) % publicIDSpace
	return fmt.Sprintf("%s-%05d-%04d", PublicIDPrefix, 10000+n/9000, 1000+n%9000), nil
}

// IsPublicID reports whether s has the shape NewPublicID produces.
func IsPublicID(s string) bool {
	var a, b int
	n, err := fmt.Sscanf(s, PublicIDPrefix+"-%5d-%4d", &a, &b)
	return err == nil && n == 2 && len(s) == len(PublicIDPrefix)+11 &&
		a >= 10000 && b >= 1000
}
