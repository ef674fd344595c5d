package transport

import (
	"context"

	"github.com/xiaoyuanxun/anda-sub000/types"
)

// CanisterParams is the {canister, method, params} triple sent to the
// canister gateway, per spec.md §6 "Canister gateway endpoints". The inner
// params bytes are opaque to this package (Candid-encoded by the caller).
type CanisterParams struct {
	Canister types.Principal `cbor:"canister"`
	Method   string          `cbor:"method"`
	Params   []byte          `cbor:"params"`
}

// CanisterQuery calls <tee_host>/canister/query, a read-only, uncommitted
// call against a canister.
func CanisterQuery(ctx context.Context, inner *Inner, teeHost string, p CanisterParams) ([]byte, error) {
	var out []byte
	err := CBORRPC(ctx, inner, teeHost+"/canister/query", "query", p, &out)
	return out, err
}

// CanisterUpdate calls <tee_host>/canister/update, a state-changing,
// consensus-committed call against a canister.
func CanisterUpdate(ctx context.Context, inner *Inner, teeHost string, p CanisterParams) ([]byte, error) {
	var out []byte
	err := CBORRPC(ctx, inner, teeHost+"/canister/update", "update", p, &out)
	return out, err
}
