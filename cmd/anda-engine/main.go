// Command anda-engine is the bring-up entrypoint for a single engine
// process: load config, wire every component layer, register a server,
// and serve until a signal arrives. Grounded on hector's cmd/hector
// serve.go, trimmed to Anda's single-server shape.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/xiaoyuanxun/anda-sub000/agent"
	"github.com/xiaoyuanxun/anda-sub000/cache"
	"github.com/xiaoyuanxun/anda-sub000/engine"
	"github.com/xiaoyuanxun/anda-sub000/federation"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/management"
	"github.com/xiaoyuanxun/anda-sub000/state"
	"github.com/xiaoyuanxun/anda-sub000/store"
	"github.com/xiaoyuanxun/anda-sub000/store/memory"
	"github.com/xiaoyuanxun/anda-sub000/store/s3"
	"github.com/xiaoyuanxun/anda-sub000/tool"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{Name: "engine", Level: hclog.Info})

	configPath := flag.String("config", "engine.yaml", "path to the engine config file")
	defaultAgent := flag.String("default-agent", "", "name of the agent served when none is requested")
	s3Bucket := flag.String("s3-bucket", "", "S3 bucket backing object storage (in-memory store if empty)")
	flag.Parse()

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}
	if *defaultAgent == "" {
		logger.Error("-default-agent is required")
		os.Exit(1)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)

	backend, err := newBackend(*s3Bucket)
	if err != nil {
		logger.Error("setting up storage backend", "error", err)
		os.Exit(1)
	}

	root, err := rootSecret(cfg.RootSecretEnv)
	if err != nil {
		logger.Error("reading root secret", "error", err)
		os.Exit(1)
	}
	ks, err := keys.NewLocalService(root)
	if err != nil {
		logger.Error("initializing key service", "error", err)
		os.Exit(1)
	}
	identity := keys.NewIdentity(ks, keys.IdentityPath)
	principal, err := identity.Principal()
	if err != nil {
		logger.Error("deriving engine identity", "error", err)
		os.Exit(1)
	}

	cch, err := cache.New(cfg.CacheCapacity)
	if err != nil {
		logger.Error("initializing cache", "error", err)
		os.Exit(1)
	}

	threads := state.NewThreadStore(backend)
	users := state.NewUserStore(backend)
	mgmt := management.New(threads, users)

	b := &engine.Builder{
		ID:            principal,
		Name:          cfg.Name,
		Endpoint:      cfg.Endpoint,
		Store:         backend,
		Tools:         tool.NewRegistry(),
		Agents:        agent.NewRegistry(),
		Federation:    federation.NewRegistry(cch),
		Management:    mgmt,
		Keys:          ks,
		Identity:      identity,
		CacheCapacity: cfg.CacheCapacity,
	}
	e, err := b.Build(context.Background(), *defaultAgent)
	if err != nil {
		logger.Error("building engine", "name", cfg.Name, "error", err)
		os.Exit(1)
	}

	metrics := engine.NewMetrics(prometheus.NewRegistry())
	var auth *engine.BearerAuth
	if cfg.Auth != nil && cfg.Auth.Enabled {
		auth, err = engine.NewBearerAuth(context.Background(), cfg.Auth.JWKSURL, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			logger.Error("configuring bearer auth", "error", err)
			os.Exit(1)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := engine.NewServer(addr, metrics, auth, cfg.ShutdownGrace)
	srv.Register(e)

	watcher, err := engine.WatchConfig(*configPath, func(*engine.Config) {
		logger.Info("config file changed; restart to apply (hot-swap of running engines is not supported)")
	})
	if err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("engine listening", "name", cfg.Name, "principal", principal.String(), "addr", addr, "default_agent", *defaultAgent)
	if err := srv.Serve(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newBackend builds the object-store backend: a real S3 client when a
// bucket is configured, the in-memory store for local runs otherwise.
func newBackend(bucket string) (store.Store, error) {
	if bucket == "" {
		return memory.New(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg)
	return s3.New(client, bucket), nil
}

func rootSecret(envVar string) ([]byte, error) {
	if envVar == "" {
		envVar = "ANDA_ROOT_SECRET"
	}
	hexVal := os.Getenv(envVar)
	if hexVal == "" {
		return nil, fmt.Errorf("environment variable %s is not set", envVar)
	}
	root, err := hex.DecodeString(hexVal)
	if err != nil {
		return nil, fmt.Errorf("parsing %s as hex: %w", envVar, err)
	}
	if len(root) != keys.RootLen {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d", envVar, keys.RootLen, len(root))
	}
	return root, nil
}
