package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/n9te9/go-graphql-stitching-gateway/logger"
)

func BuildEngineForTest(sdls, hosts map[string]string, httpClient *http.Client) (*executionEngine, error) {
	return buildEngine(sdls, hosts, httpClient, nil, 0)
}

func CopyMapForTest(m map[string]string) map[string]string {
	return copyMap(m)
}

func FetchSDLForTest(ctx context.Context, host string, httpClient *http.Client, retry RetryOption) (string, error) {
	return fetchSDL(ctx, host, httpClient, retry, logger.NewNoopLogger())
}

func NewHTTPClientForTest(timeout time.Duration, tracing bool) *http.Client {
	return newHTTPClient(timeout, tracing)
}
