package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/delegate"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

type gateway struct {
	graphQLEndpoint string
	store           *schemaStore
	logger          logger.Logger
	timeout         time.Duration

	enableComplementRequestId   bool
	enableHangOverRequestHeader bool
}

var _ http.Handler = (*gateway)(nil)

// NewGateway loads the SDL of every configured service and stitches them.
// A service's SDL comes from its schema files, from its host, or from the
// in-process catalog, in that order.
func NewGateway(ctx context.Context, settings GatewayOption, l logger.Logger) (*gateway, error) {
	if l == nil {
		l = logger.NewNoopLogger()
	}

	timeout, err := settings.timeout()
	if err != nil {
		return nil, err
	}

	httpClient := newHTTPClient(timeout, settings.Opentelemetry.TracingSetting.Enable)

	sdls := make(map[string]string, len(settings.Services))
	hosts := make(map[string]string, len(settings.Services))
	for _, s := range settings.Services {
		sdl, err := loadSDL(ctx, s, httpClient, l)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", s.Name, err)
		}
		sdls[s.Name] = sdl
		hosts[s.Name] = s.Host
	}

	engine, err := buildEngine(sdls, hosts, httpClient, l, settings.MaxBatchSize)
	if err != nil {
		return nil, err
	}

	l.Info("gateway built",
		zap.String("service_name", settings.ServiceName),
		zap.Int("services", len(sdls)),
	)

	return &gateway{
		graphQLEndpoint:             settings.Endpoint,
		store:                       &schemaStore{sdls: copyMap(sdls), hosts: copyMap(hosts), engine: engine},
		logger:                      l,
		timeout:                     timeout,
		enableComplementRequestId:   true,
		enableHangOverRequestHeader: settings.EnableHangOverRequestHeader,
	}, nil
}

// newHTTPClient returns the client for SDL fetches and delegated operations.
// Its deadline is the gateway's timeout_duration.
func newHTTPClient(timeout time.Duration, tracing bool) *http.Client {
	httpClient := &http.Client{Timeout: timeout}
	if tracing {
		httpClient.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return httpClient
}

func loadSDL(ctx context.Context, s GatewayService, httpClient *http.Client, l logger.Logger) (string, error) {
	if len(s.SchemaFiles) > 0 {
		var schema []byte
		for _, f := range s.SchemaFiles {
			src, err := os.ReadFile(f)
			if err != nil {
				return "", err
			}
			schema = append(schema, src...)
			schema = append(schema, '\n')
		}
		return string(schema), nil
	}

	if s.Host != "" {
		return fetchSDL(ctx, s.Host, httpClient, s.Retry, l)
	}

	sub, err := NewSubschema(s.Name)
	if err != nil {
		return "", err
	}
	return sub.SDL, nil
}

// Endpoint is the path the gateway is served on.
func (g *gateway) Endpoint() string {
	return g.graphQLEndpoint
}

// SDL prints the stitched schema.
func (g *gateway) SDL() string {
	return g.store.engine.schema.SDL()
}

// ServiceSDLs returns the SDL of every stitched service by name.
func (g *gateway) ServiceSDLs() map[string]string {
	return copyMap(g.store.sdls)
}

type graphQLResponse struct {
	Data   any   `json:"data"`
	Errors []any `json:"errors,omitempty"`
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req stitching.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	header := r.Header.Clone()
	requestID := header.Get(requestIDHeader)
	if requestID == "" && g.enableComplementRequestId {
		requestID = uuid.NewString()
		header.Set(requestIDHeader, requestID)
	}
	if requestID != "" {
		w.Header().Set(requestIDHeader, requestID)
	}
	l := g.logger.With(zap.String("request_id", requestID))

	ctx := r.Context()
	if g.enableHangOverRequestHeader {
		ctx = delegate.SetRequestHeaderToContext(ctx, header)
	}

	p := parser.New(lexer.New(req.Query))
	p.ParseDocument()
	if len(p.Errors()) > 0 {
		errs := make([]any, 0, len(p.Errors()))
		for _, e := range p.Errors() {
			errs = append(errs, map[string]any{
				"message":    fmt.Sprint(e),
				"extensions": map[string]string{"code": "GRAPHQL_PARSE_FAILED"},
			})
		}
		l.Debug("query failed to parse", zap.Int("errors", len(errs)))
		writeJSON(w, graphQLResponse{Errors: errs})
		return
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	res := g.store.engine.schema.Execute(ctx, req)

	resp := graphQLResponse{Data: res.Data}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e)
	}

	l.Debug("request executed",
		zap.String("operation", req.OperationName),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("duration", time.Since(start)),
	)

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
