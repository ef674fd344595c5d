package keys

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/xiaoyuanxun/anda-sub000/errs"
)

var (
	secp256k1SeedLabel = []byte("anda-secp256k1-seed")
)

type secp256k1Node struct {
	priv      *secp256k1.PrivateKey // nil once only public material remains
	pub       *secp256k1.PublicKey
	chainCode [32]byte
}

// deriveSecp256k1 walks a standard BIP32-style additive-tweak chain: the
// same scheme the secp256k1 ecosystem already standardizes on, so a public
// derivation along q from (pubkey, chainCode) never needs the scalar.
func (s *LocalService) deriveSecp256k1(path Path) secp256k1Node {
	seedH := hmacSHA512(secp256k1SeedLabel, s.root)
	scalar := new(secp256k1.ModNScalar)
	scalar.SetByteSlice(seedH[:32])
	priv := secp256k1.NewPrivateKey(scalar)
	var cc [32]byte
	copy(cc[:], seedH[32:])

	node := secp256k1Node{priv: priv, pub: priv.PubKey(), chainCode: cc}
	for _, seg := range path {
		node = node.deriveChildSecret(seg)
	}
	return node
}

func (n secp256k1Node) deriveChildSecret(segment []byte) secp256k1Node {
	h := hmacSHA512(n.chainCode[:], append(n.pub.SerializeCompressed(), segment...))
	var delta secp256k1.ModNScalar
	delta.SetByteSlice(h[:32])

	childScalar := new(secp256k1.ModNScalar).Add2(&n.priv.Key, &delta)
	childPriv := secp256k1.NewPrivateKey(childScalar)

	var cc [32]byte
	copy(cc[:], h[32:])
	return secp256k1Node{priv: childPriv, pub: childPriv.PubKey(), chainCode: cc}
}

// DeriveSecp256k1PublicChild derives a public child key from (pubkey,
// chainCode) alone, without the scalar.
func DeriveSecp256k1PublicChild(pub [33]byte, chainCode [32]byte, q Path) (childPub [33]byte, childChainCode [32]byte, err error) {
	pk, err := secp256k1.ParsePubKey(pub[:])
	if err != nil {
		return childPub, childChainCode, errs.Validation("keys.DeriveSecp256k1PublicChild", "invalid public key encoding", err)
	}
	cc := chainCode
	for _, seg := range q {
		h := hmacSHA512(cc[:], append(pk.SerializeCompressed(), seg...))
		var delta secp256k1.ModNScalar
		delta.SetByteSlice(h[:32])
		var deltaPoint secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(&delta, &deltaPoint)

		var parentPoint secp256k1.JacobianPoint
		pk.AsJacobian(&parentPoint)

		var sum secp256k1.JacobianPoint
		secp256k1.AddNonConst(&parentPoint, &deltaPoint, &sum)
		sum.ToAffine()
		pk = secp256k1.NewPublicKey(&sum.X, &sum.Y)
		copy(cc[:], h[32:])
	}
	copy(childPub[:], pk.SerializeCompressed())
	return childPub, cc, nil
}

// Secp256k1PublicKey implements spec.md §4.1.
func (s *LocalService) Secp256k1PublicKey(path Path) (sec1 [33]byte, chainCode [32]byte, err error) {
	node := s.deriveSecp256k1(path)
	copy(sec1[:], node.pub.SerializeCompressed())
	return sec1, node.chainCode, nil
}

// Secp256k1SignECDSA produces a deterministic (RFC 6979) ECDSA signature in
// DER encoding.
func (s *LocalService) Secp256k1SignECDSA(path Path, msg []byte) ([]byte, error) {
	node := s.deriveSecp256k1(path)
	digest := sha256Sum(msg)
	sig := ecdsa.Sign(node.priv, digest[:])
	return sig.Serialize(), nil
}

// Secp256k1VerifyECDSA verifies a DER-encoded ECDSA signature.
func (s *LocalService) Secp256k1VerifyECDSA(path Path, msg []byte, sigDER []byte) (bool, error) {
	pk, _, err := s.Secp256k1PublicKey(path)
	if err != nil {
		return false, err
	}
	return VerifySecp256k1ECDSA(pk, msg, sigDER)
}

// VerifySecp256k1ECDSA verifies sig against an arbitrary compressed public key.
func VerifySecp256k1ECDSA(pub [33]byte, msg []byte, sigDER []byte) (bool, error) {
	pk, err := secp256k1.ParsePubKey(pub[:])
	if err != nil {
		return false, errs.Validation("keys.VerifySecp256k1ECDSA", "invalid public key encoding", err)
	}
	sig, err := ecdsa.ParseDERSignature(sigDER)
	if err != nil {
		return false, nil
	}
	digest := sha256Sum(msg)
	return sig.Verify(digest[:], pk), nil
}

// Secp256k1SignBIP340 produces a BIP-340 Schnorr signature.
func (s *LocalService) Secp256k1SignBIP340(path Path, msg []byte) ([64]byte, error) {
	var out [64]byte
	node := s.deriveSecp256k1(path)
	digest := sha256Sum(msg)
	sig, err := schnorr.Sign(node.priv, digest[:])
	if err != nil {
		return out, errs.Internal("keys.Secp256k1SignBIP340", "schnorr sign failed", err)
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// Secp256k1VerifyBIP340 verifies a BIP-340 Schnorr signature.
func (s *LocalService) Secp256k1VerifyBIP340(path Path, msg []byte, sig [64]byte) (bool, error) {
	pk, _, err := s.Secp256k1PublicKey(path)
	if err != nil {
		return false, err
	}
	return VerifySecp256k1BIP340(pk, msg, sig)
}

// VerifySecp256k1BIP340 verifies sig against an arbitrary compressed public key.
func VerifySecp256k1BIP340(pub [33]byte, msg []byte, sig [64]byte) (bool, error) {
	pk, err := secp256k1.ParsePubKey(pub[:])
	if err != nil {
		return false, errs.Validation("keys.VerifySecp256k1BIP340", "invalid public key encoding", err)
	}
	s, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false, nil
	}
	digest := sha256Sum(msg)
	return s.Verify(digest[:], pk), nil
}

func sha256Sum(msg []byte) [32]byte {
	return sha256.Sum256(msg)
}
