// Command resolverd is the iterative DNS resolver: it binds a UDP
// socket on localhost, seeds itself from a root hints file, and chases
// referrals down the delegation hierarchy for every client query it
// receives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/haloarc/iterdns/internal/dns/common/log"
	"github.com/haloarc/iterdns/internal/dns/common/metrics"
	"github.com/haloarc/iterdns/internal/dns/config"
	"github.com/haloarc/iterdns/internal/dns/resolver"
	"github.com/haloarc/iterdns/internal/dns/roothints"
	"github.com/haloarc/iterdns/internal/dns/transport"
	"github.com/haloarc/iterdns/internal/dns/wire"
)

const (
	appName                = "resolverd"
	defaultShutdownTimeout = 5 * time.Second
)

func main() {
	port, timeout, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage: %s <port> [timeout_seconds=5]\n%v\n", appName, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) < 3 {
		timeout = time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second
	}

	log.Info(map[string]any{
		"app":     appName,
		"port":    port,
		"timeout": timeout.String(),
		"env":     cfg.Env,
	}, "starting resolver")

	app, err := buildApplication(cfg, port, timeout)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "resolver failed")
	}

	log.Info(nil, "resolver stopped gracefully")
}

// parseArgs validates the CLI contract from spec.md §6: a required
// port and an optional timeout (default 5 seconds).
func parseArgs(args []string) (port int, timeout time.Duration, err error) {
	if len(args) < 1 {
		return 0, 0, fmt.Errorf("missing required <port> argument")
	}
	port, err = strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return 0, 0, fmt.Errorf("invalid port %q", args[0])
	}

	timeoutSeconds := 5
	if len(args) >= 2 {
		timeoutSeconds, err = strconv.Atoi(args[1])
		if err != nil || timeoutSeconds < 1 {
			return 0, 0, fmt.Errorf("invalid timeout_seconds %q", args[1])
		}
	}
	return port, time.Duration(timeoutSeconds) * time.Second, nil
}

// Application wires together the resolver's two sockets and its
// optional metrics debug endpoint.
type Application struct {
	config      *config.AppConfig
	clientSide  *transport.UDPTransport
	upstream    *transport.UDPUpstream
	resolver    *resolver.Resolver
	metricsAddr string
}

func buildApplication(cfg *config.AppConfig, port int, timeout time.Duration) (*Application, error) {
	logger := log.GetLogger()

	roots, err := roothints.Load(cfg.Resolver.RootHintsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading root hints: %w", err)
	}

	codec := wire.NewCodec(logger)

	up, err := transport.NewUDPUpstream(logger)
	if err != nil {
		return nil, fmt.Errorf("opening upstream socket: %w", err)
	}

	res, err := resolver.New(resolver.Options{
		Roots:    roots,
		Upstream: up,
		Codec:    codec,
		Logger:   logger,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing resolver: %w", err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	clientSide := transport.NewUDPTransport(addr, logger)

	return &Application{
		config:      cfg,
		clientSide:  clientSide,
		upstream:    up,
		resolver:    res,
		metricsAddr: cfg.Metrics.Addr,
	}, nil
}

// Run starts the client-facing transport (and, if configured, the
// metrics debug server) and blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if err := app.clientSide.Start(ctx, app.resolver); err != nil {
		return fmt.Errorf("starting client transport: %w", err)
	}
	log.Info(map[string]any{"address": app.clientSide.Address()}, "resolver listening")

	var metricsServer *http.Server
	if app.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: app.metricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn(map[string]any{"error": err.Error()}, "metrics server stopped unexpectedly")
			}
		}()
		log.Info(map[string]any{"address": app.metricsAddr}, "metrics debug endpoint listening")
	}

	<-ctx.Done()
	log.Info(nil, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.clientSide.Stop(); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "error stopping client transport")
	}
	if err := app.upstream.Close(); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "error closing upstream socket")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "error stopping metrics server")
		}
	}

	log.Info(nil, "graceful shutdown completed")
	return nil
}
