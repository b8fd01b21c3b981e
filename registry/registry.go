package registry

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"go.uber.org/zap"
)

// BuildFunc builds a gateway from the current configuration.
type BuildFunc func(ctx context.Context) (http.Handler, error)

// Registry serves the applied gateway and swaps in a rebuilt one on reload.
// Requests in flight keep the gateway they started with.
type Registry struct {
	currentGateway atomic.Value
	build          BuildFunc
	logger         logger.Logger

	reloadMu sync.Mutex
}

// NewRegistry builds the initial gateway.
func NewRegistry(ctx context.Context, build BuildFunc, l logger.Logger) (*Registry, error) {
	if l == nil {
		l = logger.NewNoopLogger()
	}

	gw, err := build(ctx)
	if err != nil {
		return nil, err
	}

	r := &Registry{build: build, logger: l}
	r.currentGateway.Store(gw)
	return r, nil
}

func (r *Registry) AppliedGateway() http.Handler {
	return r.currentGateway.Load().(http.Handler)
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.AppliedGateway().ServeHTTP(w, req)
}

// Reload rebuilds the gateway and applies it. The applied gateway is kept
// when the build fails.
func (r *Registry) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	next, err := r.build(ctx)
	if err != nil {
		r.logger.Error("failed to rebuild gateway", zap.Error(err))
		return err
	}

	r.currentGateway.Store(next)
	r.logger.Info("gateway reloaded")
	return nil
}

// ReloadGateway handles POST /schema/reload.
func (r *Registry) ReloadGateway(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.Reload(req.Context()); err != nil {
		http.Error(w, "Failed to generate next gateway: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
