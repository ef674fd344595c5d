package types

import (
	"crypto/sha3"
	"unicode/utf8"
)

// Resource is a tagged, content-addressed blob passed alongside agent and
// tool calls (images, documents, retrieved artifacts).
type Resource struct {
	Tag         string            `json:"tag" cbor:"tag"`
	Name        string            `json:"name" cbor:"name"`
	Description string            `json:"description,omitempty" cbor:"description,omitempty"`
	MimeType    string            `json:"mime_type" cbor:"mime_type"`
	Metadata    map[string]string `json:"metadata,omitempty" cbor:"metadata,omitempty"`
	Bytes       []byte            `json:"bytes,omitempty" cbor:"bytes,omitempty"`
	URI         string            `json:"uri,omitempty" cbor:"uri,omitempty"`
	Hash        [32]byte          `json:"hash" cbor:"hash"`
}

// NewResourceFromBytes builds a Resource and fills in its content hash.
func NewResourceFromBytes(tag, name, mimeType string, data []byte) Resource {
	r := Resource{
		Tag:      tag,
		Name:     name,
		MimeType: mimeType,
		Bytes:    data,
	}
	r.Hash = sha3.Sum256(data)
	return r
}

// TruncateMemo truncates s to at most maxBytes bytes without splitting a
// UTF-8 scalar, per the engine's memo-string invariant.
func TruncateMemo(s string) string {
	const maxBytes = 32
	if len(s) <= maxBytes {
		return s
	}
	// Walk back to the first byte of the scalar that straddles the limit so
	// no multi-byte scalar is split.
	n := maxBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
