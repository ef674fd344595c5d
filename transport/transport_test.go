package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/types"
)

type fakeDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func jsonResp(status int, body []byte) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body))}
}

func TestOuter_HTTPSCall_RejectsPlaintext(t *testing.T) {
	o := NewOuterWithDoer(&fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		t.Fatal("should not dial")
		return nil, nil
	}}, "anda-test/1.0")
	_, err := o.HTTPSCall(context.Background(), "http://example.com", http.MethodGet, nil, nil)
	require.Error(t, err)
}

func TestOuter_HTTPSCall_NonTwoXXIsResponseError(t *testing.T) {
	o := NewOuterWithDoer(&fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		return jsonResp(500, []byte("boom")), nil
	}}, "anda-test/1.0")
	_, err := o.HTTPSCall(context.Background(), "https://example.com", http.MethodGet, nil, nil)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, 500, respErr.StatusCode)
}

type stubSigner struct {
	sig [64]byte
	pub [32]byte
}

func (s stubSigner) SignDigest(ctx context.Context, digest [32]byte) ([]byte, []byte, error) {
	return s.sig[:], s.pub[:], nil
}

func (s stubSigner) Principal() (types.Principal, error) {
	return types.Principal{1, 2, 3}, nil
}

func TestHTTPSSignedRPC_RoundTrip(t *testing.T) {
	var capturedBody []byte
	o := NewOuterWithDoer(&fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		capturedBody, _ = io.ReadAll(r.Body)
		result := Result{Ok: mustMarshal(t, []string{"pong"})}
		b, _ := cbor.Marshal(result)
		return jsonResp(200, b), nil
	}}, "anda-test/1.0")

	var out []string
	err := o.HTTPSSignedRPC(context.Background(), stubSigner{}, "https://peer.example/rpc", "ping", []string{"hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"pong"}, out)

	var env Envelope
	require.NoError(t, cbor.Unmarshal(capturedBody, &env))
	assert.Equal(t, "ping", env.Method)
}

func TestHTTPSSignedRPC_ProviderError(t *testing.T) {
	o := NewOuterWithDoer(&fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		result := Result{Err: "method not found"}
		b, _ := cbor.Marshal(result)
		return jsonResp(200, b), nil
	}}, "anda-test/1.0")

	var out []string
	err := o.HTTPSSignedRPC(context.Background(), stubSigner{}, "https://peer.example/rpc", "missing", nil, &out)
	require.Error(t, err)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := cbor.Marshal(v)
	require.NoError(t, err)
	return b
}
