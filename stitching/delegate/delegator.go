package delegate

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/batch"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
	"go.uber.org/zap"
)

// Options configures a single delegated call.
type Options struct {
	Subschema string
	Operation string // "query" (default) or "mutation"
	FieldName string

	// Args are sent to FieldName. When nil and FieldName is the field being
	// resolved, the gateway field's arguments are forwarded.
	Args map[string]any
}

// BatchOptions configures a batched delegated call. Every Key registered in
// the same execution pass is sent with one call to FieldName.
type BatchOptions struct {
	Subschema string
	FieldName string
	Key       string

	// ArgsFromKeys builds the arguments of FieldName. Defaults to {"ids": keys}.
	ArgsFromKeys func(keys []string) map[string]any

	// Path leads from the result of FieldName to the objects the gateway
	// field selects, e.g. ["items"] for a connection.
	Path []string

	// ValuesFromResults maps the raw result of FieldName (after Path) to one
	// value per key. The returned slice must be aligned with keys.
	ValuesFromResults func(results any, keys []string) ([]any, error)
}

// Delegator resolves gateway fields by calling the subschemas that own them.
type Delegator struct {
	superGraph *graph.SuperGraph
	executors  map[string]Executor
	builder    *QueryBuilder
	logger     logger.Logger
}

func NewDelegator(superGraph *graph.SuperGraph, executors map[string]Executor, l logger.Logger) *Delegator {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Delegator{
		superGraph: superGraph,
		executors:  executors,
		builder:    NewQueryBuilder(superGraph),
		logger:     l,
	}
}

// Delegate resolves the current field with one call to opts.Subschema.
func (d *Delegator) Delegate(p graphql.ResolveParams, opts Options) (any, error) {
	executor, err := d.executor(opts.Subschema)
	if err != nil {
		return nil, err
	}

	args := opts.Args
	if args == nil && opts.FieldName == p.Info.FieldName {
		args = p.Args
	}

	sel, err := d.selection(p)
	if err != nil {
		return nil, err
	}

	req, err := d.builder.Build(Operation{
		Type:      opts.Operation,
		FieldName: opts.FieldName,
		Args:      args,
		Selection: sel,
	})
	if err != nil {
		return nil, err
	}

	resp, err := d.execute(p.Context, opts.Subschema, executor, req)
	if err != nil {
		return nil, err
	}

	return d.result(opts.Subschema, opts.FieldName, resp)
}

// BatchDelegate registers opts.Key with the batch scope of the request and
// returns a thunk that graphql-go awaits after the current execution pass.
func (d *Delegator) BatchDelegate(p graphql.ResolveParams, opts BatchOptions) (any, error) {
	executor, err := d.executor(opts.Subschema)
	if err != nil {
		return nil, err
	}

	sel, err := d.selection(p)
	if err != nil {
		return nil, err
	}

	argsFromKeys := opts.ArgsFromKeys
	if argsFromKeys == nil {
		argsFromKeys = func(keys []string) map[string]any {
			return map[string]any{"ids": keys}
		}
	}
	valuesFromResults := opts.ValuesFromResults
	if valuesFromResults == nil {
		valuesFromResults = listResults
	}

	var fetch batch.BatchFunc[string, any] = func(ctx context.Context, keys []string) ([]any, error) {
		req, err := d.builder.Build(Operation{
			FieldName: opts.FieldName,
			Args:      argsFromKeys(keys),
			Path:      opts.Path,
			Selection: sel,
		})
		if err != nil {
			return nil, err
		}

		resp, err := d.execute(ctx, opts.Subschema, executor, req)
		if err != nil {
			return nil, err
		}

		results, err := d.result(opts.Subschema, opts.FieldName, resp)
		if err != nil {
			return nil, err
		}
		for _, name := range opts.Path {
			m, _ := results.(map[string]any)
			results = m[name]
		}

		return valuesFromResults(results, keys)
	}

	var collector *batch.Collector[string, any]
	if scope, ok := batch.FromContext(p.Context); ok {
		name := opts.Subschema + "." + opts.FieldName + "/" + sel.Key()
		collector = batch.Loader(scope, name, fetch)
	} else {
		collector = batch.NewCollector(opts.Subschema+"."+opts.FieldName, fetch, batch.WithLogger(d.logger))
	}

	thunk := collector.Load(p.Context, opts.Key)
	return (func() (any, error))(thunk), nil
}

func (d *Delegator) executor(name string) (Executor, error) {
	executor, ok := d.executors[name]
	if !ok {
		return nil, fmt.Errorf("no executor for subschema %q", name)
	}
	return executor, nil
}

func (d *Delegator) selection(p graphql.ResolveParams) (*Selection, error) {
	typeName := graphql.GetNamed(p.Info.ReturnType).String()
	return d.builder.Selection(typeName, p.Info.FieldASTs, p.Info.Fragments, p.Info.VariableValues)
}

func (d *Delegator) execute(ctx context.Context, name string, executor Executor, req *Request) (*Response, error) {
	d.logger.Debug("delegating operation",
		zap.String("subschema", name),
		zap.String("query", req.Query),
	)

	resp, err := executor.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("delegation to %q failed: %w", name, err)
	}
	return resp, nil
}

// result extracts fieldName from resp. Downstream errors fail the field only
// when no value came back with them.
func (d *Delegator) result(name, fieldName string, resp *Response) (any, error) {
	value := resp.Data[fieldName]
	if len(resp.Errors) == 0 {
		return value, nil
	}

	if value == nil {
		return nil, &downstreamError{subschema: name, err: resp.Errors[0]}
	}

	for _, e := range resp.Errors {
		d.logger.Warn("partial delegated result",
			zap.String("subschema", name),
			zap.String("field", fieldName),
			zap.String("error", e.Message),
		)
	}
	return value, nil
}

// listResults accepts a result list that is already aligned with the keys.
func listResults(results any, keys []string) ([]any, error) {
	list, ok := results.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of %d results, got %T", len(keys), results)
	}
	return list, nil
}

// downstreamError surfaces a subschema error as a gateway field error,
// keeping its extensions.
type downstreamError struct {
	subschema string
	err       GraphQLError
}

func (e *downstreamError) Error() string {
	return e.err.Message
}

func (e *downstreamError) Extensions() map[string]any {
	ext := map[string]any{"subschema": e.subschema}
	for k, v := range e.err.Extensions {
		ext[k] = v
	}
	return ext
}

func (e *downstreamError) Unwrap() error {
	return e.err
}
