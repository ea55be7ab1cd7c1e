package outline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

// Fingerprint returns the hex sha256 of the rubric source. Any edit to the
// rubric changes it, which invalidates persisted generation state.
func Fingerprint(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile fingerprints the rubric at path.
func FingerprintFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rubric: %w", err)
	}
	return Fingerprint(data), nil
}

// Load parses the rubric at path and fingerprints the same bytes, so the
// outline and its fingerprint can never disagree.
func Load(path string) (*types.Outline, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read rubric: %w", err)
	}
	return ParseString(string(data)), Fingerprint(data), nil
}
