// Package keys implements the C1 key service: deterministic derivation of
// AES-GCM, Ed25519, and Secp256k1 (ECDSA + BIP340) keys from a 48-byte root
// secret, plus sign/verify wrappers.
//
// All derivation is path-scoped: a path is a sequence of byte strings,
// conventionally the caller's namespace path followed by any
// caller-specific segments. Derivation (and therefore signing) is
// deterministic for a fixed (root, path, msg) tuple.
package keys

import (
	"crypto/hmac"
	"crypto/sha3"
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/xiaoyuanxun/anda-sub000/errs"
)

// RootLen is the required length of the root secret.
const RootLen = 48

// Path is a derivation path: a sequence of byte-string segments.
type Path [][]byte

// Bytes flattens the path into a single byte slice, matching the
// original_source scheme of concatenating path segments before hashing.
func (p Path) Bytes() []byte {
	var out []byte
	for _, seg := range p {
		out = append(out, seg...)
	}
	return out
}

// Append returns a new path with segment appended.
func (p Path) Append(segment []byte) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, segment)
}

// Service is the C1 key service contract. A TEE-proxied implementation
// (keys.RemoteService) satisfies the same interface over signed CBOR-RPC.
type Service interface {
	A256GCMKey(path Path) ([32]byte, error)

	Ed25519Sign(path Path, msg []byte) ([64]byte, error)
	Ed25519PublicKey(path Path) (pk [32]byte, chainCode [32]byte, err error)
	Ed25519Verify(path Path, msg []byte, sig [64]byte) (bool, error)

	Secp256k1SignECDSA(path Path, msg []byte) ([]byte, error)
	Secp256k1SignBIP340(path Path, msg []byte) ([64]byte, error)
	Secp256k1PublicKey(path Path) (sec1 [33]byte, chainCode [32]byte, err error)
	Secp256k1VerifyECDSA(path Path, msg []byte, sig []byte) (bool, error)
	Secp256k1VerifyBIP340(path Path, msg []byte, sig [64]byte) (bool, error)
}

// mac3_256 is an HMAC-SHA3-256, matching the original_source's mac3_256
// label (the teacher's own crypto stack leans on x/crypto primitives only;
// SHA3 is stdlib as of Go 1.24, no external dep required).
func mac3_256(key, data []byte) [32]byte {
	h := hmac.New(sha3.New256, key)
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// LocalService holds the root secret in process memory and implements
// Service directly, without any network round-trip.
type LocalService struct {
	root []byte
}

// NewLocalService validates and wraps a 48-byte root secret.
func NewLocalService(root []byte) (*LocalService, error) {
	if len(root) != RootLen {
		return nil, errs.Validation("keys.NewLocalService", "root secret must be 48 bytes", nil)
	}
	cp := make([]byte, RootLen)
	copy(cp, root)
	return &LocalService{root: cp}, nil
}

// A256GCMKey implements spec.md §4.1: salt = MAC3-256 over the concatenated
// path with context label "A256GCM"; key = HKDF-SHA512(root, salt) with
// info "A256GCM".
func (s *LocalService) A256GCMKey(path Path) ([32]byte, error) {
	salt := mac3_256(path.Bytes(), []byte("A256GCM"))
	r := hkdf.New(sha512.New, s.root, salt[:], []byte("A256GCM"))
	var key [32]byte
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, errs.Internal("keys.A256GCMKey", "hkdf expand failed", err)
	}
	return key, nil
}
