package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// hashLen truncates hashes to something log- and key-friendly while keeping
// drift detection reliable.
const hashLen = 12

// HashText returns a short stable hash of a prompt body.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// HashSchema returns a short stable hash of a response schema. The schema is
// JSON-marshalled first so key order is deterministic.
func HashSchema(schema *genai.Schema) (string, error) {
	if schema == nil {
		return "", nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshal schema for hashing: %w", err)
	}
	return HashText(string(data)), nil
}
