package engine

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/transport"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// BearerAuth validates inbound JWT bearer tokens against a JWKS endpoint,
// grounded on hector's pkg/auth.JWTValidator: a cached, auto-refreshed
// keyset and issuer/audience checks. Unlike the signed-RPC caller
// principal (verified per request against the envelope digest), this
// identifies a human or service *user* riding on top of an
// engine-to-engine call.
type BearerAuth struct {
	cache    *jwk.Cache
	jwksURL  string
	issuer   string
	audience string
}

// NewBearerAuth builds a validator that fetches and caches jwksURL,
// refreshing at most every 15 minutes, matching hector's refresh interval.
func NewBearerAuth(ctx context.Context, jwksURL, issuer, audience string) (*BearerAuth, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, errs.Internal("engine.NewBearerAuth", "registering JWKS url", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, errs.Internal("engine.NewBearerAuth", "fetching JWKS", err)
	}
	return &BearerAuth{cache: cache, jwksURL: jwksURL, issuer: issuer, audience: audience}, nil
}

// Subject validates tokenString and returns its subject claim.
func (b *BearerAuth) Subject(ctx context.Context, tokenString string) (string, error) {
	keyset, err := b.cache.Get(ctx, b.jwksURL)
	if err != nil {
		return "", errs.Authz("engine.BearerAuth.Subject", "fetching cached JWKS failed", err)
	}
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(b.issuer),
		jwt.WithAudience(b.audience),
	)
	if err != nil {
		return "", errs.Authz("engine.BearerAuth.Subject", "invalid bearer token", err)
	}
	return token.Subject(), nil
}

// Server hosts a set of Engines under chi routes, per spec.md §4.12: POST
// requests to /<engine_id> carry a CBOR {method, params} envelope, and
// /.well-known/information lists every hosted engine's card.
type Server struct {
	mu      sync.RWMutex
	engines map[string]*Engine

	router  chi.Router
	httpSrv *http.Server

	auth    *BearerAuth
	metrics *Metrics
	tracer  trace.Tracer
	logger  hclog.Logger

	shutdownGrace time.Duration
}

// NewServer builds a Server bound to addr. metrics and auth are optional
// (nil disables Prometheus instrumentation / bearer-auth respectively).
func NewServer(addr string, metrics *Metrics, auth *BearerAuth, shutdownGrace time.Duration) *Server {
	if shutdownGrace <= 0 {
		shutdownGrace = 30 * time.Second
	}
	s := &Server{
		engines:       make(map[string]*Engine),
		metrics:       metrics,
		auth:          auth,
		tracer:        otel.Tracer("anda.engine"),
		logger:        hclog.New(&hclog.LoggerOptions{Name: "anda-engine", Level: hclog.Info}),
		shutdownGrace: shutdownGrace,
	}
	r := chi.NewRouter()
	r.Get("/.well-known/information", s.handleWellKnown)
	r.Post("/{engineID}", s.handleRPC)
	s.router = r
	s.httpSrv = &http.Server{Addr: addr, Handler: s.instrument(r)}
	return s
}

// Register adds e to the set of engines this server hosts, keyed by its
// principal's textual form.
func (s *Server) Register(e *Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines[e.info.ID.String()] = e
}

// Handler returns the server's instrumented HTTP handler, for tests that
// want to drive it directly (e.g. via httptest) without binding a port.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) engine(id string) (*Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[id]
	return e, ok
}

// instrument wraps next with the OTel-span-plus-Prometheus-metrics
// middleware pattern of hector's pkg/transport/http_metrics_middleware.go:
// a span per request carrying HTTP attributes, and a route-labeled counter
// and histogram using chi's matched route pattern for low cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := s.tracer.Start(r.Context(), "http."+r.Method)
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if rw.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rw.status))
		}
		span.End()

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, statusClass(rw.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func (s *Server) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	infos := make([]types.Information, 0, len(s.engines))
	for _, e := range s.engines {
		infos = append(infos, e.Information())
	}
	s.mu.RUnlock()
	writeCBOR(w, http.StatusOK, infos)
}

// handleRPC implements the signed-RPC receive path of spec.md §4.11:
// reconstruct the digest over the raw body, verify the caller's signature,
// resolve the optional bearer-auth user, then dispatch by envelope method.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	engineID := chi.URLParam(r, "engineID")
	e, ok := s.engine(engineID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown engine id")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body failed")
		return
	}

	caller, err := transport.VerifyIncoming(r, body, verifyEd25519, principalFromPublicKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	user := ""
	if s.auth != nil {
		if tok := bearerToken(r); tok != "" {
			if subject, err := s.auth.Subject(r.Context(), tok); err == nil {
				user = subject
			}
		}
	}

	var env transport.Envelope
	if err := cbor.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "malformed envelope")
		return
	}

	start := time.Now()
	result, rpcErr := s.dispatch(e, caller, user, env)
	var named struct {
		Name string `cbor:"name"`
	}
	_ = cbor.Unmarshal(env.Params, &named)
	s.recordCallMetrics(env.Method, named.Name, rpcErr, start)

	if rpcErr != nil {
		writeCBOR(w, http.StatusOK, transport.Result{Err: rpcErr.Error()})
		return
	}
	writeCBOR(w, http.StatusOK, transport.Result{Ok: result})
}

func (s *Server) dispatch(e *Engine, caller types.Principal, user string, env transport.Envelope) ([]byte, error) {
	switch env.Method {
	case "information":
		return cbor.Marshal(e.Information())
	case "agent_run":
		var in types.AgentInput
		if err := cbor.Unmarshal(env.Params, &in); err != nil {
			return nil, errs.Validation("engine.Server.dispatch", "decoding agent_run params", err)
		}
		in.Meta.TraceID = ensureTraceID(in.Meta.TraceID, e.info.Name)
		out, err := e.AgentRun(caller, user, in)
		if err != nil {
			return nil, err
		}
		return cbor.Marshal(out)
	case "tool_call":
		var in types.ToolInput
		if err := cbor.Unmarshal(env.Params, &in); err != nil {
			return nil, errs.Validation("engine.Server.dispatch", "decoding tool_call params", err)
		}
		in.Meta.TraceID = ensureTraceID(in.Meta.TraceID, e.info.Name)
		out, err := e.ToolCall(caller, user, in)
		if err != nil {
			return nil, err
		}
		return cbor.Marshal(out)
	default:
		return nil, errs.Validation("engine.Server.dispatch", "unknown method: "+env.Method, nil)
	}
}

func (s *Server) recordCallMetrics(method, name string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	switch method {
	case "agent_run":
		s.metrics.AgentRunTotal.WithLabelValues(name, outcomeLabel(err)).Inc()
		s.metrics.AgentRunDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	case "tool_call":
		s.metrics.ToolCallTotal.WithLabelValues(name, outcomeLabel(err)).Inc()
		s.metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func writeCBOR(w http.ResponseWriter, status int, v any) {
	data, err := cbor.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	data, _ := cbor.Marshal(transport.Result{Err: msg})
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// ensureTraceID assigns a fresh id, prefixed with the hosting engine's name
// for log/metric correlation, when the caller left the request's trace id
// blank, the same "prefix a generated id with an identifying label" shape
// goa-ai's run id generator uses.
func ensureTraceID(existing, enginePrefix string) string {
	if existing != "" {
		return existing
	}
	return enginePrefix + "-" + uuid.NewString()
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// Serve starts the HTTP listener and blocks until the context is
// cancelled, at which point it drains in-flight requests for up to
// shutdownGrace before returning, the same two-phase shutdown serve.go
// uses (signal wait, then bounded graceful stop).
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
	defer cancel()
	s.logger.Info("shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}
