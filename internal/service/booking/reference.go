package booking

import (
	"crypto/rand"
	"fmt"
)

// referenceAlphabet deliberately omits easily confused characters (0/O, 1/I).
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referenceLength = 6

// maxReferenceAttempts bounds collision re-rolls. With a 32^6 space the
// chance of exhausting it is negligible.
const maxReferenceAttempts = 5

// NewReference returns a short, unguessable, human-facing booking code drawn
// from a cryptographically strong source. Uniqueness is enforced by the
// database constraint; callers re-roll on collision.
func NewReference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate booking reference: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(buf), nil
}
