package keys

import (
	"context"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/transport"
)

// RPC is a CBOR-RPC call bound to one fixed endpoint, narrowed so this
// package never imports transport's HTTP plumbing directly.
type RPC interface {
	Call(ctx context.Context, method string, params any, out any) error
}

// innerRPC adapts a *transport.Inner key endpoint to RPC.
type innerRPC struct {
	inner    *transport.Inner
	endpoint string
}

func (r innerRPC) Call(ctx context.Context, method string, params any, out any) error {
	return transport.CBORRPC(ctx, r.inner, r.endpoint, method, params, out)
}

// NewRemoteRPC builds the RPC adapter for the TEE key endpoint
// (<tee_host>/keys), per spec.md §6.
func NewRemoteRPC(inner *transport.Inner, teeHost string) RPC {
	return innerRPC{inner: inner, endpoint: teeHost + "/keys"}
}

// RemoteService implements Service by delegating every operation to a
// TEE-hosted key endpoint over signed CBOR-RPC, per spec.md §4.1 ("a
// TEE-proxied variant") and §6 ("Key service endpoint").
type RemoteService struct {
	rpc RPC
	ctx context.Context
}

// NewRemoteService builds a Service backed by a TEE key endpoint. The
// context passed here is used for the lifetime of outgoing RPCs; callers
// that need per-call cancellation should construct a fresh RemoteService
// scoped to that context, mirroring how engine/context hands out
// context-scoped services.
func NewRemoteService(ctx context.Context, rpc RPC) *RemoteService {
	return &RemoteService{rpc: rpc, ctx: ctx}
}

var _ Service = (*RemoteService)(nil)

func (s *RemoteService) A256GCMKey(path Path) ([32]byte, error) {
	var out [32]byte
	if err := s.rpc.Call(s.ctx, "a256gcm_key", []any{path.segments()}, &out); err != nil {
		return out, errs.Transport("keys.RemoteService.A256GCMKey", "TEE key endpoint call failed", err)
	}
	return out, nil
}

func (s *RemoteService) Ed25519Sign(path Path, msg []byte) ([64]byte, error) {
	var out [64]byte
	if err := s.rpc.Call(s.ctx, "ed25519_sign_message", []any{path.segments(), msg}, &out); err != nil {
		return out, errs.Transport("keys.RemoteService.Ed25519Sign", "TEE key endpoint call failed", err)
	}
	return out, nil
}

func (s *RemoteService) Ed25519PublicKey(path Path) ([32]byte, [32]byte, error) {
	var out struct {
		PK        [32]byte `cbor:"pk"`
		ChainCode [32]byte `cbor:"chain_code"`
	}
	if err := s.rpc.Call(s.ctx, "ed25519_public_key", []any{path.segments()}, &out); err != nil {
		return out.PK, out.ChainCode, errs.Transport("keys.RemoteService.Ed25519PublicKey", "TEE key endpoint call failed", err)
	}
	return out.PK, out.ChainCode, nil
}

func (s *RemoteService) Ed25519Verify(path Path, msg []byte, sig [64]byte) (bool, error) {
	pk, _, err := s.Ed25519PublicKey(path)
	if err != nil {
		return false, err
	}
	return VerifyEd25519(pk, msg, sig)
}

func (s *RemoteService) Secp256k1SignECDSA(path Path, msg []byte) ([]byte, error) {
	var out []byte
	if err := s.rpc.Call(s.ctx, "secp256k1_sign_message_ecdsa", []any{path.segments(), msg}, &out); err != nil {
		return nil, errs.Transport("keys.RemoteService.Secp256k1SignECDSA", "TEE key endpoint call failed", err)
	}
	return out, nil
}

func (s *RemoteService) Secp256k1SignBIP340(path Path, msg []byte) ([64]byte, error) {
	var out [64]byte
	if err := s.rpc.Call(s.ctx, "secp256k1_sign_message_bip340", []any{path.segments(), msg}, &out); err != nil {
		return out, errs.Transport("keys.RemoteService.Secp256k1SignBIP340", "TEE key endpoint call failed", err)
	}
	return out, nil
}

func (s *RemoteService) Secp256k1PublicKey(path Path) ([33]byte, [32]byte, error) {
	var out struct {
		Sec1      [33]byte `cbor:"sec1"`
		ChainCode [32]byte `cbor:"chain_code"`
	}
	if err := s.rpc.Call(s.ctx, "secp256k1_public_key", []any{path.segments()}, &out); err != nil {
		return out.Sec1, out.ChainCode, errs.Transport("keys.RemoteService.Secp256k1PublicKey", "TEE key endpoint call failed", err)
	}
	return out.Sec1, out.ChainCode, nil
}

func (s *RemoteService) Secp256k1VerifyECDSA(path Path, msg []byte, sig []byte) (bool, error) {
	pk, _, err := s.Secp256k1PublicKey(path)
	if err != nil {
		return false, err
	}
	return VerifySecp256k1ECDSA(pk, msg, sig)
}

func (s *RemoteService) Secp256k1VerifyBIP340(path Path, msg []byte, sig [64]byte) (bool, error) {
	pk, _, err := s.Secp256k1PublicKey(path)
	if err != nil {
		return false, err
	}
	return VerifySecp256k1BIP340(pk, msg, sig)
}

// segments renders a Path as the seq<bytes> wire shape the TEE endpoint
// expects.
func (p Path) segments() [][]byte {
	return [][]byte(p)
}
