package types

import "strings"

// SystemPath is the reserved namespace for management operations.
const SystemPath = "_"

// Path is a slash-separated lowercase namespace.
type Path string

// Join lowercases and concatenates namespace and relative path segments,
// matching the object-store façade's effective-key rule.
func Join(segments ...string) Path {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.ToLower(strings.Trim(s, "/"))
		if s != "" {
			parts = append(parts, s)
		}
	}
	return Path(strings.Join(parts, "/"))
}

func (p Path) String() string { return string(p) }

// Child appends a segment, lowercased.
func (p Path) Child(segment string) Path {
	return Join(string(p), segment)
}

// UpdateVersion is the opaque optimistic-concurrency token returned by a
// store write and required on the next write of the same entity.
type UpdateVersion uint64
