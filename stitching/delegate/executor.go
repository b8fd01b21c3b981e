package delegate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema"
)

// Request is one operation sent to a subschema.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is the GraphQL-over-HTTP envelope returned by a subschema.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error with path information.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// Executor sends delegated operations to one subschema.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// LocalExecutor runs delegated operations against an in-process subschema.
type LocalExecutor struct {
	subschema *subschema.Subschema
}

var _ Executor = (*LocalExecutor)(nil)

func NewLocalExecutor(s *subschema.Subschema) *LocalExecutor {
	return &LocalExecutor{subschema: s}
}

func (e *LocalExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	res := e.subschema.Execute(ctx, req.Query, req.Variables, req.OperationName)

	resp := &Response{}
	if data, ok := res.Data.(map[string]any); ok {
		resp.Data = data
	}
	for _, err := range res.Errors {
		resp.Errors = append(resp.Errors, fromFormattedError(err))
	}

	return resp, nil
}

func fromFormattedError(err gqlerrors.FormattedError) GraphQLError {
	return GraphQLError{
		Message:    err.Message,
		Path:       err.Path,
		Extensions: err.Extensions,
	}
}

// HTTPExecutor posts delegated operations to a remote subschema endpoint.
type HTTPExecutor struct {
	host       string
	httpClient *http.Client
}

var _ Executor = (*HTTPExecutor)(nil)

func NewHTTPExecutor(host string, httpClient *http.Client) *HTTPExecutor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPExecutor{
		host:       host,
		httpClient: httpClient,
	}
}

func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if header, ok := RequestHeaderFromContext(ctx); ok {
		for k, values := range header {
			if skipForwardHeader(k) {
				continue
			}
			for _, v := range values {
				httpReq.Header.Add(k, v)
			}
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, e.host)
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}
