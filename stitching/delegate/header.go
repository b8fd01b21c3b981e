package delegate

import (
	"context"
	"net/http"
)

type requestHeaderKey struct{}

// SetRequestHeaderToContext stores the inbound request headers so that
// HTTPExecutor forwards them to remote subschemas.
func SetRequestHeaderToContext(ctx context.Context, header http.Header) context.Context {
	return context.WithValue(ctx, requestHeaderKey{}, header.Clone())
}

func RequestHeaderFromContext(ctx context.Context) (http.Header, bool) {
	header, ok := ctx.Value(requestHeaderKey{}).(http.Header)
	return header, ok
}

// hop-by-hop and body related headers never cross to a subschema
var skippedForwardHeaders = map[string]bool{
	"Accept-Encoding":   true,
	"Connection":        true,
	"Content-Length":    true,
	"Content-Type":      true,
	"Host":              true,
	"Keep-Alive":        true,
	"Te":                true,
	"Trailer":           true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
}

func skipForwardHeader(key string) bool {
	return skippedForwardHeaders[http.CanonicalHeaderKey(key)]
}
