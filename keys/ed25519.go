package keys

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"

	"filippo.io/edwards25519"

	"github.com/xiaoyuanxun/anda-sub000/errs"
)

// ed25519Node is one node of the hierarchical derivation: a (possibly
// secret) scalar/point pair plus the chain code and nonce key needed to
// derive children and sign. This mirrors the BIP32-Ed25519 scheme (as used
// by ic-crypto-ed25519's derive_subkey): each step mixes the parent chain
// code with the next path segment via HMAC-SHA512, so a holder of only
// (publicPoint, chainCode) can derive descendant public keys without ever
// learning the scalar.
type ed25519Node struct {
	scalar     *edwards25519.Scalar // nil if this node only has public material
	point      *edwards25519.Point
	chainCode  [32]byte
	nonceKey   [32]byte // secret-only: HMAC key used to derive the signing nonce
}

var (
	ed25519SeedLabel  = []byte("anda-ed25519-seed")
	ed25519NonceLabel = []byte("anda-ed25519-nonce")
)

func ed25519Root(root []byte) ed25519Node {
	seedH := hmacSHA512(ed25519SeedLabel, root)
	scalar := scalarFromUniform(seedH)
	point := edwards25519.NewIdentityPoint().ScalarBaseMult(scalar)

	nonceH := hmacSHA512(ed25519NonceLabel, root)
	var cc, nk [32]byte
	copy(cc[:], seedH[32:])
	copy(nk[:], nonceH[:32])

	return ed25519Node{scalar: scalar, point: point, chainCode: cc, nonceKey: nk}
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// scalarFromUniform reduces a 64-byte HMAC-SHA512 output mod L. The input
// is always exactly 64 bytes by construction, so the only possible error
// from SetUniformBytes indicates a programming error, not a runtime
// condition callers can recover from.
func scalarFromUniform(b []byte) *edwards25519.Scalar {
	s, err := edwards25519.NewScalar().SetUniformBytes(b)
	if err != nil {
		panic("keys: SetUniformBytes requires exactly 64 bytes: " + err.Error())
	}
	return s
}

// deriveChildSecret derives one child step from n, keeping the secret
// scalar alongside the chain code/nonce key.
func (n ed25519Node) deriveChildSecret(segment []byte) ed25519Node {
	h := hmacSHA512(n.chainCode[:], segment)
	delta := scalarFromUniform(h)
	childScalar := edwards25519.NewScalar().Add(n.scalar, delta)
	childPoint := edwards25519.NewIdentityPoint().ScalarBaseMult(childScalar)

	nonceH := hmacSHA512(n.nonceKey[:], segment)
	var cc, nk [32]byte
	copy(cc[:], h[32:])
	copy(nk[:], nonceH[:32])

	return ed25519Node{scalar: childScalar, point: childPoint, chainCode: cc, nonceKey: nk}
}

// derivePublicEd25519Child derives one child step using only public material: the child point is
// parent + delta*B, where delta depends only on (chainCode, segment).
func derivePublicEd25519Child(point *edwards25519.Point, chainCode [32]byte, segment []byte) (*edwards25519.Point, [32]byte) {
	h := hmacSHA512(chainCode[:], segment)
	delta := scalarFromUniform(h)
	deltaPoint := edwards25519.NewIdentityPoint().ScalarBaseMult(delta)
	childPoint := edwards25519.NewIdentityPoint().Add(point, deltaPoint)
	var cc [32]byte
	copy(cc[:], h[32:])
	return childPoint, cc
}

func (s *LocalService) ed25519Derive(path Path) ed25519Node {
	node := ed25519Root(s.root)
	for _, seg := range path {
		node = node.deriveChildSecret(seg)
	}
	return node
}

// Ed25519PublicKey implements spec.md §4.1's `ed25519_public_key`.
func (s *LocalService) Ed25519PublicKey(path Path) (pk [32]byte, chainCode [32]byte, err error) {
	node := s.ed25519Derive(path)
	copy(pk[:], node.point.Bytes())
	return pk, node.chainCode, nil
}

// DeriveEd25519PublicChild implements the public-only composition law: from
// (pk, chainCode) at path p, derive (pk', chainCode') at path p∥q without
// the root secret.
func DeriveEd25519PublicChild(pk [32]byte, chainCode [32]byte, q Path) (childPK [32]byte, childChainCode [32]byte, err error) {
	point, err := new(edwards25519.Point).SetBytes(pk[:])
	if err != nil {
		return childPK, childChainCode, errs.Validation("keys.DeriveEd25519PublicChild", "invalid public key encoding", err)
	}
	cc := chainCode
	for _, seg := range q {
		point, cc = derivePublicEd25519Child(point, cc, seg)
	}
	copy(childPK[:], point.Bytes())
	return childPK, cc, nil
}

// Ed25519Sign implements a Schnorr signature over edwards25519 compatible
// with the standard EdDSA verification equation S*B = R + k*A, where
// k = SHA-512(R || A || msg) mod L. The nonce r is derived deterministically
// from the node's secret-only nonce key so (root, path, msg) always yields
// the same signature.
func (s *LocalService) Ed25519Sign(path Path, msg []byte) ([64]byte, error) {
	var sig [64]byte
	node := s.ed25519Derive(path)

	rH := hmacSHA512(node.nonceKey[:], msg)
	r := scalarFromUniform(rH)
	R := edwards25519.NewIdentityPoint().ScalarBaseMult(r)

	A := node.point.Bytes()
	k := scalarFromUniform(challengeHash(R.Bytes(), A, msg))

	S := edwards25519.NewScalar().MultiplyAdd(k, node.scalar, r)

	copy(sig[:32], R.Bytes())
	copy(sig[32:], S.Bytes())
	return sig, nil
}

// Ed25519Verify verifies a signature produced by Ed25519Sign (or any
// compatible EdDSA-over-edwards25519 signer) against the path's derived
// public key.
func (s *LocalService) Ed25519Verify(path Path, msg []byte, sig [64]byte) (bool, error) {
	pk, _, err := s.Ed25519PublicKey(path)
	if err != nil {
		return false, err
	}
	return VerifyEd25519(pk, msg, sig)
}

// VerifyEd25519 verifies sig against an arbitrary derived public key,
// usable by a caller that only holds (pk, chainCode), never the root.
func VerifyEd25519(pk [32]byte, msg []byte, sig [64]byte) (bool, error) {
	A, err := new(edwards25519.Point).SetBytes(pk[:])
	if err != nil {
		return false, errs.Validation("keys.VerifyEd25519", "invalid public key encoding", err)
	}
	R, err := new(edwards25519.Point).SetBytes(sig[:32])
	if err != nil {
		return false, nil
	}
	S, err := new(edwards25519.Scalar).SetCanonicalBytes(sig[32:])
	if err != nil {
		return false, nil
	}
	k := scalarFromUniform(challengeHash(sig[:32], pk[:], msg))

	// Check S*B == R + k*A
	lhs := edwards25519.NewIdentityPoint().ScalarBaseMult(S)
	kA := edwards25519.NewIdentityPoint().ScalarMult(k, A)
	rhs := edwards25519.NewIdentityPoint().Add(R, kA)
	return bytes.Equal(lhs.Bytes(), rhs.Bytes()), nil
}

func challengeHash(r, a, msg []byte) []byte {
	h := sha512.New()
	h.Write(r)
	h.Write(a)
	h.Write(msg)
	return h.Sum(nil)
}
