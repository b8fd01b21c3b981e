package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/n9te9/go-graphql-stitching-gateway/gateway"
	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"github.com/n9te9/go-graphql-stitching-gateway/registry"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema"
	"github.com/n9te9/go-graphql-stitching-gateway/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConfigPath = "gateway.yaml"
	shutdownTimeout   = 5 * time.Second
)

// Run serves the gateway described by the config at configPath until the
// process is interrupted. With withSubgraphs, every remote service that is
// in the in-process catalog is started on its host's port first.
func Run(configPath string, withSubgraphs bool) error {
	opt, err := gateway.LoadOption(configPath)
	if err != nil {
		return err
	}

	l, err := logger.NewLogger(opt.Log.Format, opt.Log.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	if opt.Opentelemetry.TracingSetting.Enable {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.WithServiceName(opt.ServiceName))
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				l.Warn("failed to shut down tracer provider", zap.Error(err))
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)

	// abort stops the servers already started before returning err.
	abort := func(err error) error {
		stop()
		if werr := g.Wait(); werr != nil {
			l.Warn("failed to shut down servers", zap.Error(werr))
		}
		return err
	}

	if withSubgraphs {
		addrs, err := subgraphAddrs(opt)
		if err != nil {
			return err
		}
		for name, addr := range addrs {
			s, err := gateway.NewSubschema(name)
			if err != nil {
				return abort(err)
			}
			srv := &http.Server{Addr: addr, Handler: subschema.NewHandler(s, l)}
			if err := start(ctx, g, srv); err != nil {
				return abort(err)
			}
			l.Info("subgraph started", zap.String("subgraph", name), zap.String("addr", addr))
		}
	}

	reg, err := registry.NewRegistry(ctx, func(ctx context.Context) (http.Handler, error) {
		// Reloads pick up service changes. Endpoint and port are fixed for the process.
		next, err := gateway.LoadOption(configPath)
		if err != nil {
			return nil, err
		}
		return gateway.NewGateway(ctx, next, l)
	}, l)
	if err != nil {
		return abort(err)
	}

	var handler http.Handler = newMux(reg, opt.Endpoint)
	if opt.Opentelemetry.TracingSetting.Enable {
		handler = otelhttp.NewHandler(handler, opt.ServiceName)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opt.Port),
		Handler: handler,
	}
	if err := start(ctx, g, srv); err != nil {
		return abort(err)
	}

	l.Info(fmt.Sprintf("Server ready at http://localhost:%d%s", opt.Port, opt.Endpoint),
		zap.String("service_name", opt.ServiceName),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	l.Info("server stopped")
	return nil
}

// RunSubgraph serves one subschema of the in-process catalog standalone.
func RunSubgraph(name string, port int) error {
	l, err := logger.NewLogger("text", "info")
	if err != nil {
		return err
	}

	s, err := gateway.NewSubschema(name)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: subschema.NewHandler(s, l),
	}
	if err := start(ctx, g, srv); err != nil {
		return err
	}

	l.Info(fmt.Sprintf("Subgraph %s ready at http://localhost:%d/graphql", name, port))
	return g.Wait()
}

// Init writes the default gateway configuration to path.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	src, err := gateway.DefaultOption().Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, src, 0o644)
}

// PrintSchema writes the stitched SDL of the configured gateway to w. An
// empty configPath prints the default gateway.
func PrintSchema(ctx context.Context, configPath string, w io.Writer) error {
	opt := gateway.DefaultOption()
	if configPath != "" {
		var err error
		if opt, err = gateway.LoadOption(configPath); err != nil {
			return err
		}
	}

	gw, err := gateway.NewGateway(ctx, opt, logger.NewNoopLogger())
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, gw.SDL())
	return err
}

func newMux(reg *registry.Registry, endpoint string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/schema/reload", reg.ReloadGateway)
	mux.Handle(endpoint, reg)
	return mux
}

// subgraphAddrs returns the listen address of every remote service the
// process can run itself.
func subgraphAddrs(opt gateway.GatewayOption) (map[string]string, error) {
	addrs := make(map[string]string)
	for _, s := range opt.Services {
		if s.Host == "" {
			continue
		}
		if _, err := gateway.NewSubschema(s.Name); err != nil {
			continue
		}

		u, err := url.Parse(s.Host)
		if err != nil {
			return nil, fmt.Errorf("service %q: invalid host: %w", s.Name, err)
		}
		if u.Port() == "" {
			return nil, fmt.Errorf("service %q: host %s has no port", s.Name, s.Host)
		}
		addrs[s.Name] = ":" + u.Port()
	}
	return addrs, nil
}

// start listens on srv.Addr and serves until ctx is done.
func start(ctx context.Context, g *errgroup.Group, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return nil
}
