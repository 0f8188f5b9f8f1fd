package ir

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// jsonMarshal is a variable to allow testing of marshal errors.
var jsonMarshal = json.Marshal

// HashBytes computes the BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashString computes the BLAKE3 hash of a string and returns it as a hex string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashDocument computes the BLAKE3 hash of a Document by serializing to JSON.
// Property order is part of the serialization, so two documents produced by
// the same reader from the same input always hash equally.
func HashDocument(d *Document) (string, error) {
	data, err := jsonMarshal(d)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// NewSourceInfo describes an input. The hash is only computed when
// withHash is set, since it costs a full pass over the input.
func NewSourceInfo(format, input string, withHash bool) *SourceInfo {
	si := &SourceInfo{Format: format, Size: len(input)}
	if withHash {
		si.Hash = HashString(input)
	}
	return si
}
