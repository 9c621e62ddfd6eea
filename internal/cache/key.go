package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyFor computes a deterministic cache key for any JSON-encodable value.
// The value is marshaled, round-tripped through an untyped decode so map
// keys sort canonically, and hashed with SHA-256. Two requests that differ
// in any field produce different keys.
func KeyFor(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key input: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to canonicalize cache key input: %w", err)
	}

	canonical, err := json.Marshal(decoded)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize cache key input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
