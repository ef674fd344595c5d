// Package federation implements the C10 remote-engine federation layer:
// registering peer engines by fetching their information card over signed
// RPC, re-exposing each peer's advertised tools and agents locally under
// prefixed names, and resolving those prefixed names back to the peer's
// endpoint and unprefixed name so completion and agent dispatch can proxy
// the call, per spec.md §4.10.
package federation

import (
	"strings"
	"sync"
	"time"

	"github.com/xiaoyuanxun/anda-sub000/cache"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

const (
	toolPrefix  = "RT_"
	agentPrefix = "RA_"

	// cacheNamespace scopes peer information refreshes in the shared cache
	// service, keyed by alias, so concurrent Refresh calls for the same
	// peer collapse into one outbound request.
	cacheNamespace = "federation.peer"

	// DefaultRefreshTTL bounds how long a peer's advertised card is trusted
	// before Refresh re-fetches it.
	DefaultRefreshTTL = 5 * time.Minute
)

// peer is one registered remote engine.
type peer struct {
	alias    string
	endpoint string
	info     types.Information
}

// Registry holds the set of registered peer engines and answers prefix
// resolution for remote tool and agent names. A Registry with no peers
// resolves nothing and can be embedded unconditionally.
type Registry struct {
	mu         sync.RWMutex
	peers      map[string]*peer
	cache      *cache.Service
	refreshTTL time.Duration
}

// NewRegistry builds an empty federation registry. cache may be nil, in
// which case Refresh always fetches (no dedup across concurrent callers).
func NewRegistry(c *cache.Service) *Registry {
	return &Registry{peers: make(map[string]*peer), cache: c, refreshTTL: DefaultRefreshTTL}
}

// Register fetches alias's information card from endpoint over signed RPC
// and adds it as a peer. alias must not contain '_' (it is embedded
// unescaped between the RT_/RA_ prefix and the remote name).
func (r *Registry) Register(ctx *ectx.BaseCtx, alias, endpoint string) (types.Information, error) {
	logger := ctx.Logger().Named("federation")
	if strings.Contains(alias, "_") {
		return types.Information{}, errs.Validation("federation.Registry.Register", "peer alias must not contain '_'", nil)
	}
	info, err := fetchInformation(ctx, endpoint)
	if err != nil {
		logger.Warn("registering peer failed", "alias", alias, "endpoint", endpoint, "error", err)
		return types.Information{}, err
	}
	r.mu.Lock()
	r.peers[alias] = &peer{alias: alias, endpoint: endpoint, info: info}
	r.mu.Unlock()
	logger.Info("registered peer", "alias", alias, "endpoint", endpoint)
	return info, nil
}

// Unregister removes a previously registered peer; it is not an error if
// alias was never registered.
func (r *Registry) Unregister(alias string) {
	r.mu.Lock()
	delete(r.peers, alias)
	r.mu.Unlock()
}

// Peers lists the aliases of every registered peer.
func (r *Registry) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.peers))
	for alias := range r.peers {
		out = append(out, alias)
	}
	return out
}

// Refresh re-fetches alias's information card, deduplicating concurrent
// refreshes of the same peer through the cache service's singleflight group
// (spec.md §4.3), then updates the stored snapshot.
func (r *Registry) Refresh(ctx *ectx.BaseCtx, alias string) error {
	r.mu.RLock()
	p, ok := r.peers[alias]
	r.mu.RUnlock()
	if !ok {
		return errs.Resource("federation.Registry.Refresh", "unknown peer alias", nil)
	}

	fetch := func() (any, error) { return fetchInformation(ctx, p.endpoint) }
	var (
		raw any
		err error
	)
	if r.cache != nil {
		raw, err = r.cache.GetWith(cacheNamespace, alias, cache.TTL(r.refreshTTL), fetch)
	} else {
		raw, err = fetch()
	}
	if err != nil {
		ctx.Logger().Named("federation").Warn("refreshing peer failed", "alias", alias, "error", err)
		return err
	}
	info, ok := raw.(types.Information)
	if !ok {
		return errs.Internal("federation.Registry.Refresh", "cached peer information had unexpected type", nil)
	}

	r.mu.Lock()
	p.info = info
	r.mu.Unlock()
	return nil
}

func fetchInformation(ctx *ectx.BaseCtx, endpoint string) (types.Information, error) {
	var info types.Information
	if err := ctx.HTTPSSignedRPC(endpoint, "information", nil, &info); err != nil {
		return types.Information{}, err
	}
	return info, nil
}

// ResolveTool maps a prefixed tool name RT_<alias>_<tool> to the peer's
// endpoint and the unprefixed tool name, matching completion.RemoteToolResolver.
func (r *Registry) ResolveTool(name string) (endpoint, stripped string, ok bool) {
	return r.resolve(name, toolPrefix)
}

// ResolveAgent maps a prefixed agent name RA_<alias>_<agent> to the peer's
// endpoint and the unprefixed agent name.
func (r *Registry) ResolveAgent(name string) (endpoint, stripped string, ok bool) {
	return r.resolve(name, agentPrefix)
}

func (r *Registry) resolve(name, prefix string) (endpoint, stripped string, ok bool) {
	if !strings.HasPrefix(name, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, prefix)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for alias, p := range r.peers {
		aliasPrefix := alias + "_"
		if strings.HasPrefix(rest, aliasPrefix) {
			return p.endpoint, strings.TrimPrefix(rest, aliasPrefix), true
		}
	}
	return "", "", false
}

// ToolDefinitions returns every registered peer's advertised tool
// definitions, renamed under the RT_<alias>_ prefix, so a completion
// request's tool list can include remote tools alongside local ones.
func (r *Registry) ToolDefinitions() []types.FunctionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.FunctionDefinition
	for alias, p := range r.peers {
		for _, def := range p.info.ToolDefinitions {
			def.Name = toolPrefix + alias + "_" + def.Name
			out = append(out, def)
		}
	}
	return out
}

// AgentDefinitions returns every registered peer's advertised agent
// definitions, renamed under the RA_<alias>_ prefix.
func (r *Registry) AgentDefinitions() []types.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.AgentDefinition
	for alias, p := range r.peers {
		for _, def := range p.info.AgentDefinitions {
			def.Name = agentPrefix + alias + "_" + def.Name
			out = append(out, def)
		}
	}
	return out
}
