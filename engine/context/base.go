// Package context implements the C5 base capability context: the object
// threaded through every tool and agent call, composing identity,
// cancellation, and the key/store/cache/transport services scoped to a
// path, per spec.md §4.5.
package context

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/xiaoyuanxun/anda-sub000/cache"
	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/store"
	"github.com/xiaoyuanxun/anda-sub000/transport"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// MaxDepth is the hard ceiling on child-context nesting, per spec.md §4.5.
const MaxDepth = 42

// Services bundles the capability services every BaseCtx proxies calls to.
// An engine builds one Services value and shares it across every context it
// spawns; BaseCtx only narrows it by path.
type Services struct {
	Keys     keys.Service
	Store    store.Store
	Cache    *cache.Service
	Outer    *transport.Outer
	Inner    *transport.Inner
	Identity transport.Signer
	Logger   hclog.Logger
}

// BaseCtx is the capability set threaded through every tool.
type BaseCtx struct {
	context.Context

	id       types.Principal
	name     string
	path     types.Path
	caller   types.Principal
	user     string
	startAt  time.Time
	depth    uint8
	meta     types.RequestMeta
	services Services
	logger   hclog.Logger

	cancel context.CancelFunc
}

// New constructs the root BaseCtx for an engine, at depth 0. The context's
// logger is services.Logger (a null logger if none was supplied), named
// after the path it roots; every Child/ChildWith call derives from it by
// adding the new path segment as logging context, rather than renaming it.
func New(parent context.Context, id types.Principal, name string, services Services) *BaseCtx {
	cctx, cancel := context.WithCancel(parent)
	logger := services.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &BaseCtx{
		Context:  cctx,
		id:       id,
		name:     name,
		path:     types.Path(name),
		caller:   id,
		user:     "",
		startAt:  time.Now(),
		depth:    0,
		services: services,
		logger:   logger.With("path", name),
		cancel:   cancel,
	}
}

func (c *BaseCtx) ID() types.Principal         { return c.id }
func (c *BaseCtx) Name() string                { return c.name }
func (c *BaseCtx) Path() types.Path            { return c.path }
func (c *BaseCtx) Caller() types.Principal     { return c.caller }
func (c *BaseCtx) User() string                { return c.user }
func (c *BaseCtx) Depth() uint8                { return c.depth }
func (c *BaseCtx) Meta() types.RequestMeta     { return c.meta }
func (c *BaseCtx) Keys() keys.Service          { return c.services.Keys }
func (c *BaseCtx) Store() store.Store          { return c.services.Store }
func (c *BaseCtx) Cache() *cache.Service       { return c.services.Cache }
func (c *BaseCtx) Outer() *transport.Outer     { return c.services.Outer }
func (c *BaseCtx) Inner() *transport.Inner     { return c.services.Inner }
func (c *BaseCtx) Services() Services          { return c.services }

// Logger returns this context's logger, carrying every path segment
// accumulated from the root down to here as "path" logging context.
func (c *BaseCtx) Logger() hclog.Logger { return c.logger }

// Cancel fires this context's own cancellation token; children observe it
// too, since their contexts derive from this one.
func (c *BaseCtx) Cancel() { c.cancel() }

// TimeElapsed returns wall-clock time since context creation.
func (c *BaseCtx) TimeElapsed() time.Duration { return time.Since(c.startAt) }

// Child spawns a context with depth+1 and a child cancellation token,
// reusing the caller and user, per spec.md §4.5.
func (c *BaseCtx) Child(pathSegment string) (*BaseCtx, error) {
	return c.ChildWith(pathSegment, c.caller, c.user, c.meta)
}

// ChildWith is Child plus overrides for caller/user/meta, used when a tool
// acts on behalf of a nested request.
func (c *BaseCtx) ChildWith(pathSegment string, caller types.Principal, user string, meta types.RequestMeta) (*BaseCtx, error) {
	if c.depth >= MaxDepth {
		return nil, errs.Resource("BaseCtx.Child", "maximum context depth exceeded", nil)
	}
	cctx, cancel := context.WithCancel(c.Context)
	childPath := c.path.Child(pathSegment)
	return &BaseCtx{
		Context:  cctx,
		id:       c.id,
		name:     c.name,
		path:     childPath,
		caller:   caller,
		user:     user,
		startAt:  time.Now(),
		depth:    c.depth + 1,
		meta:     meta,
		services: c.services,
		logger:   c.logger.With("path", childPath.String()),
		cancel:   cancel,
	}, nil
}

// RandBytes fills n CSPRNG bytes, per spec.md §4.5's rand_bytes<N>().
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errs.Internal("BaseCtx.RandBytes", "reading CSPRNG failed", err)
	}
	return b, nil
}

// RandNumber returns a uniformly distributed CSPRNG value in [0, max), per
// spec.md §4.5's rand_number(range).
func RandNumber(max int64) (int64, error) {
	if max <= 0 {
		return 0, errs.Validation("BaseCtx.RandNumber", "range must be positive", nil)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, errs.Internal("BaseCtx.RandNumber", "reading CSPRNG failed", err)
	}
	return n.Int64(), nil
}

// KeyPath derives this context's own key-derivation path: its namespace
// path as a single segment, matching the scoping rule
// "cryptographic... methods are proxied to the underlying services scoped
// by path" (spec.md §4.5).
func (c *BaseCtx) KeyPath() keys.Path {
	p := keys.Path{}
	p = p.Append([]byte(c.path.String()))
	return p
}

// A256GCMKey proxies to the key service, scoped by this context's path.
func (c *BaseCtx) A256GCMKey() ([32]byte, error) {
	return c.services.Keys.A256GCMKey(c.KeyPath())
}

// StoreNamespace is the object-store namespace this context operates in.
func (c *BaseCtx) StoreNamespace() types.Path { return c.path }

// CacheNamespace is the cache namespace this context operates in.
func (c *BaseCtx) CacheNamespace() string { return c.path.String() }

// HTTPSCall proxies to the outer client.
func (c *BaseCtx) HTTPSCall(url, method string, headers map[string][]string, body []byte) ([]byte, error) {
	return c.services.Outer.HTTPSCall(c.Context, url, method, headers, body)
}

// HTTPSSignedRPC proxies to the outer client, signing with this context's
// identity.
func (c *BaseCtx) HTTPSSignedRPC(endpoint, method string, params any, out any) error {
	return c.services.Outer.HTTPSSignedRPC(c.Context, c.services.Identity, endpoint, method, params, out)
}
