package keys

import (
	"context"
	"crypto/sha3"

	"github.com/xiaoyuanxun/anda-sub000/types"
)

// IdentityPath is the fixed derivation path under which an engine's own
// signing identity lives, distinct from any per-caller or per-object
// derivation path.
var IdentityPath = Path{[]byte("identity"), []byte("ed25519")}

// PrincipalFromEd25519PublicKey derives a self-authenticating principal from
// a raw 32-byte Ed25519 public key: the low 29 bytes of its SHA3-256 digest,
// the same "hash the public key" shape spec.md's principal type assumes
// everywhere a caller identity is derived from key material.
func PrincipalFromEd25519PublicKey(pk [32]byte) types.Principal {
	h := sha3.Sum256(pk[:])
	return types.Principal(append([]byte(nil), h[:29]...))
}

// Identity signs digests on behalf of an engine's own Ed25519 key, the
// local (non-TEE) implementation of the "identity endpoint" described in
// spec.md §6. It satisfies transport.Signer without transport needing to
// import this package.
type Identity struct {
	svc  Service
	path Path
}

// NewIdentity builds an Identity signer over the given key service and
// derivation path (IdentityPath unless the caller needs a scoped identity).
func NewIdentity(svc Service, path Path) *Identity {
	return &Identity{svc: svc, path: path}
}

// SignDigest implements transport.Signer: sign digest with this identity's
// Ed25519 key, returning the 64-byte signature and the 32-byte public key.
func (id *Identity) SignDigest(_ context.Context, digest [32]byte) ([]byte, []byte, error) {
	sig, err := id.svc.Ed25519Sign(id.path, digest[:])
	if err != nil {
		return nil, nil, err
	}
	pk, _, err := id.svc.Ed25519PublicKey(id.path)
	if err != nil {
		return nil, nil, err
	}
	return sig[:], pk[:], nil
}

// Principal returns the principal this identity signs as.
func (id *Identity) Principal() (types.Principal, error) {
	pk, _, err := id.svc.Ed25519PublicKey(id.path)
	if err != nil {
		return types.Anonymous, err
	}
	return PrincipalFromEd25519PublicKey(pk), nil
}

// VerifyEd25519Signature adapts VerifyEd25519 to transport.Verifier's
// (publicKey, msg, signature) shape.
func VerifyEd25519Signature(publicKey, msg, signature []byte) (bool, error) {
	if len(publicKey) != 32 || len(signature) != 64 {
		return false, nil
	}
	var pk [32]byte
	var sig [64]byte
	copy(pk[:], publicKey)
	copy(sig[:], signature)
	return VerifyEd25519(pk, msg, sig)
}
