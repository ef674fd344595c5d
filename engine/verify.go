package engine

import (
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

func verifyEd25519(publicKey, msg, signature []byte) (bool, error) {
	return keys.VerifyEd25519Signature(publicKey, msg, signature)
}

func principalFromPublicKey(publicKey []byte) types.Principal {
	if len(publicKey) != 32 {
		return types.Anonymous
	}
	var pk [32]byte
	copy(pk[:], publicKey)
	return keys.PrincipalFromEd25519PublicKey(pk)
}
