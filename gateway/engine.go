package gateway

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/delegate"
)

// executionEngine bundles all read-only components required to serve GraphQL requests.
type executionEngine struct {
	schema *stitching.Schema
}

// schemaStore holds the raw SDLs, host URLs, and the engine built from them.
// Every value must be read-only after it is constructed.
type schemaStore struct {
	sdls   map[string]string // subschema name → SDL string
	hosts  map[string]string // subschema name → GraphQL endpoint, empty for in-process
	engine *executionEngine
}

// buildEngine stitches the given SDLs into an executionEngine. Subschemas with
// a host are reached over httpClient, the others run in-process.
// Subschemas are processed in name order so composition errors are stable.
func buildEngine(sdls, hosts map[string]string, httpClient *http.Client, l logger.Logger, maxBatch int) (*executionEngine, error) {
	names := make([]string, 0, len(sdls))
	for name := range sdls {
		names = append(names, name)
	}
	sort.Strings(names)

	subschemas := make([]stitching.Subschema, 0, len(names))
	for _, name := range names {
		executor, err := newExecutor(name, hosts[name], httpClient)
		if err != nil {
			return nil, err
		}
		subschemas = append(subschemas, stitching.Subschema{
			Name:     name,
			SDL:      sdls[name],
			Executor: executor,
		})
	}

	schema, err := stitching.Stitch(stitching.Config{
		Subschemas: subschemas,
		TypeDefs:   postUserTypeDefs,
		Resolvers:  postUserResolvers(),
		Logger:     l,
		MaxBatch:   maxBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("composition failed: %w", err)
	}

	return &executionEngine{schema: schema}, nil
}

func newExecutor(name, host string, httpClient *http.Client) (delegate.Executor, error) {
	if host != "" {
		return delegate.NewHTTPExecutor(host, httpClient), nil
	}

	s, err := NewSubschema(name)
	if err != nil {
		return nil, fmt.Errorf("service %q has no host: %w", name, err)
	}
	return delegate.NewLocalExecutor(s), nil
}

// copyMap returns a shallow copy of a string map.
func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
