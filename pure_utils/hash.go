package pure_utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash returns the hex sha256 of the JSON encoding of v. It is used
// to bind grants and decisions to the exact policy and context they were
// computed from. Map iteration order does not leak into the hash because
// encoding/json sorts map keys.
func ContentHash(v any) string {
	payload, err := json.Marshal(v)
	if err != nil {
		// all hashed values are plain data structs; an encoding error here
		// is a programming error
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// HashStrings hashes a fixed sequence of strings, NUL-separated.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
