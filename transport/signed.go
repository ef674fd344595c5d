package transport

import (
	"context"
	"crypto/sha3"
	"encoding/base64"
	"net/http"

	"github.com/fxamacker/cbor/v2"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Header names for the signature triple carried on signed RPCs, per
// spec.md §4.11.
const (
	HeaderPublicKey = "X-Anda-Public-Key"
	HeaderSignature = "X-Anda-Signature"
	HeaderCaller    = "X-Anda-Caller"
)

// Digest hashes a request body with SHA3-256 to produce the 32-byte message
// digest that identity signatures are computed over.
func Digest(body []byte) [32]byte {
	return sha3.Sum256(body)
}

// Signer delegates signing of a 32-byte digest to the identity endpoint
// (spec.md §4.4's https_signed_call, §4.11's identity signature). It returns
// the raw signature bytes and the signer's public key encoding.
type Signer interface {
	SignDigest(ctx context.Context, digest [32]byte) (signature []byte, publicKey []byte, err error)
	Principal() (types.Principal, error)
}

// Verifier maps a public key to a signature check, used on the receiving
// side of a signed RPC.
type Verifier func(publicKey, msg, signature []byte) (bool, error)

// Envelope is the CBOR-RPC request body, per spec.md §4.11.
type Envelope struct {
	Method string `cbor:"method"`
	Params []byte `cbor:"params"` // CBOR-encoded tuple, opaque to the envelope itself
}

// Result is the CBOR-RPC response envelope: Result<bytes, string>.
type Result struct {
	Ok  []byte `cbor:"ok,omitempty"`
	Err string `cbor:"err,omitempty"`
}

// HTTPSSignedCall implements spec.md §4.4 https_signed_call: signs digest via
// the identity endpoint, merges the returned signature headers, and sends.
func (o *Outer) HTTPSSignedCall(ctx context.Context, signer Signer, url, method string, digest [32]byte, headers http.Header, body []byte) ([]byte, error) {
	sig, pub, err := signer.SignDigest(ctx, digest)
	if err != nil {
		return nil, errs.Internal("transport.HTTPSSignedCall", "identity signing failed", err)
	}
	caller, err := signer.Principal()
	if err != nil {
		return nil, errs.Internal("transport.HTTPSSignedCall", "resolving caller principal failed", err)
	}
	h := headers.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(HeaderSignature, base64.StdEncoding.EncodeToString(sig))
	h.Set(HeaderPublicKey, base64.StdEncoding.EncodeToString(pub))
	h.Set(HeaderCaller, caller.String())
	return o.HTTPSCall(ctx, url, method, h, body)
}

// HTTPSSignedRPC implements spec.md §4.4 https_signed_rpc<T>: encodes
// {method, params} as CBOR, hashes with SHA3-256, signs, POSTs with
// content-type application/cbor, and decodes the Result<CBOR, string>
// response into out.
func (o *Outer) HTTPSSignedRPC(ctx context.Context, signer Signer, endpoint, method string, params any, out any) error {
	encodedParams, err := cbor.Marshal(params)
	if err != nil {
		return errs.Internal("transport.HTTPSSignedRPC", "encoding params failed", err)
	}
	env := Envelope{Method: method, Params: encodedParams}
	body, err := cbor.Marshal(env)
	if err != nil {
		return errs.Internal("transport.HTTPSSignedRPC", "encoding envelope failed", err)
	}
	digest := Digest(body)

	headers := http.Header{"Content-Type": []string{"application/cbor"}}
	respBody, err := o.HTTPSSignedCall(ctx, signer, endpoint, http.MethodPost, digest, headers, body)
	if err != nil {
		return err
	}
	return decodeResult(respBody, out)
}

// CBORRPC implements the spec.md §4.4 common cbor_rpc(client, endpoint,
// path, headers, body) -> bytes primitive: sends an unsigned CBOR POST and
// unwraps the Result<bytes, string> envelope, used by the TEE-colocated
// endpoints (key service, identity, canister gateway) over the inner client.
func CBORRPC(ctx context.Context, inner *Inner, endpoint, method string, params any, out any) error {
	encodedParams, err := cbor.Marshal(params)
	if err != nil {
		return errs.Internal("transport.CBORRPC", "encoding params failed", err)
	}
	env := Envelope{Method: method, Params: encodedParams}
	body, err := cbor.Marshal(env)
	if err != nil {
		return errs.Internal("transport.CBORRPC", "encoding envelope failed", err)
	}
	headers := http.Header{"Content-Type": []string{"application/cbor"}}
	respBody, err := inner.Call(ctx, endpoint, http.MethodPost, headers, body)
	if err != nil {
		return err
	}
	return decodeResult(respBody, out)
}

func decodeResult(respBody []byte, out any) error {
	var res Result
	if err := cbor.Unmarshal(respBody, &res); err != nil {
		return errs.Transport("transport.decodeResult", "decoding response envelope failed", err)
	}
	if res.Err != "" {
		return errs.Provider("transport.decodeResult", res.Err, nil)
	}
	if out == nil {
		return nil
	}
	if err := cbor.Unmarshal(res.Ok, out); err != nil {
		return errs.Transport("transport.decodeResult", "decoding result payload failed", err)
	}
	return nil
}

// VerifyIncoming implements spec.md §4.11's server-side verification:
// reconstruct the digest over the raw body, verify the signature against the
// supplied public key, and map the public key to a caller principal.
func VerifyIncoming(r *http.Request, body []byte, verify Verifier, principalOf func(publicKey []byte) types.Principal) (types.Principal, error) {
	pubB64 := r.Header.Get(HeaderPublicKey)
	sigB64 := r.Header.Get(HeaderSignature)
	if pubB64 == "" || sigB64 == "" {
		return types.Anonymous, errs.Authz("transport.VerifyIncoming", "missing signature headers", nil)
	}
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return types.Anonymous, errs.Authz("transport.VerifyIncoming", "malformed public key header", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return types.Anonymous, errs.Authz("transport.VerifyIncoming", "malformed signature header", err)
	}
	digest := Digest(body)
	ok, err := verify(pub, digest[:], sig)
	if err != nil {
		return types.Anonymous, errs.Internal("transport.VerifyIncoming", "signature verification failed", err)
	}
	if !ok {
		return types.Anonymous, errs.Authz("transport.VerifyIncoming", "signature does not verify", nil)
	}
	return principalOf(pub), nil
}
