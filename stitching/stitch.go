// Package stitching composes independently defined subschemas into one
// executable schema whose root fields delegate to the subschemas that own them.
package stitching

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/batch"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/delegate"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
	"go.uber.org/zap"
)

// Subschema is a schema taking part in stitching and the executor that runs
// delegated operations against it.
type Subschema struct {
	Name     string
	SDL      string
	Executor delegate.Executor
}

// FieldResolver resolves a field the gateway adds with `extend type`.
// SelectionSet lists the parent fields Resolve reads, e.g. "{ userId }".
// They are fetched from the owning subschema even when the client did not
// select them.
type FieldResolver struct {
	SelectionSet string
	Resolve      func(p graphql.ResolveParams, d *delegate.Delegator) (any, error)
}

type Config struct {
	Subschemas []Subschema
	TypeDefs   string
	Resolvers  map[string]map[string]FieldResolver
	Logger     logger.Logger
	MaxBatch   int // Distinct keys per batched call, zero for no limit
}

// Schema is the stitched, executable schema.
type Schema struct {
	superGraph *graph.SuperGraph
	schema     graphql.Schema
	delegator  *delegate.Delegator
	logger     logger.Logger
	maxBatch   int
}

// Stitch merges the subschemas, applies the gateway typeDefs and wires every
// field to its resolver.
func Stitch(cfg Config) (*Schema, error) {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNoopLogger()
	}

	subGraphs := make([]*graph.SubGraph, 0, len(cfg.Subschemas))
	executors := make(map[string]delegate.Executor, len(cfg.Subschemas))
	for _, s := range cfg.Subschemas {
		if s.Executor == nil {
			return nil, fmt.Errorf("subschema %q has no executor", s.Name)
		}
		sg, err := graph.NewSubGraph(s.Name, s.SDL)
		if err != nil {
			return nil, err
		}
		subGraphs = append(subGraphs, sg)
		executors[s.Name] = s.Executor
	}

	superGraph, err := graph.NewSuperGraph(subGraphs, cfg.TypeDefs)
	if err != nil {
		return nil, err
	}

	for typeName, fields := range cfg.Resolvers {
		for fieldName, fr := range fields {
			if superGraph.Extension(typeName, fieldName) == nil {
				return nil, fmt.Errorf("resolver for %s.%s does not match a field added by typeDefs", typeName, fieldName)
			}
			if fr.Resolve == nil {
				return nil, fmt.Errorf("resolver for %s.%s has no resolve function", typeName, fieldName)
			}
			if fr.SelectionSet == "" {
				continue
			}
			if err := superGraph.SetRequires(typeName, fieldName, fr.SelectionSet); err != nil {
				return nil, err
			}
		}
	}

	s := &Schema{
		superGraph: superGraph,
		delegator:  delegate.NewDelegator(superGraph, executors, l),
		logger:     l,
		maxBatch:   cfg.MaxBatch,
	}

	table := graph.FieldResolvers{}
	for _, op := range []struct{ typeName, operation string }{
		{"Query", "query"},
		{"Mutation", "mutation"},
	} {
		for _, fieldName := range superGraph.RootFields(op.typeName) {
			table.Set(op.typeName, fieldName, s.rootResolver(op.operation, superGraph.Owner(op.typeName, fieldName).Name, fieldName))
		}
	}

	for _, ext := range superGraph.Extensions() {
		fr, ok := cfg.Resolvers[ext.TypeName][ext.FieldName]
		if !ok {
			return nil, fmt.Errorf("field %s.%s added by typeDefs has no resolver", ext.TypeName, ext.FieldName)
		}
		table.Set(ext.TypeName, ext.FieldName, s.extensionResolver(ext, fr))
	}

	schema, err := graph.BuildSchema(superGraph.Schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to build stitched schema: %w", err)
	}
	s.schema = schema

	l.Debug("schema stitched",
		zap.Int("subschemas", len(subGraphs)),
		zap.Int("extensions", len(superGraph.Extensions())),
	)

	return s, nil
}

func (s *Schema) rootResolver(operation, owner, fieldName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		return s.delegator.Delegate(p, delegate.Options{
			Subschema: owner,
			Operation: operation,
			FieldName: fieldName,
		})
	}
}

func (s *Schema) extensionResolver(ext *graph.Extension, fr FieldResolver) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		parent, _ := p.Source.(map[string]any)
		for _, name := range ext.Requires {
			if _, ok := parent[name]; !ok {
				return nil, fmt.Errorf("missing required field %q on %s", name, ext.TypeName)
			}
		}
		return fr.Resolve(p, s.delegator)
	}
}

// Request is one GraphQL operation sent to the stitched schema.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// Execute runs req with its own batch scope. Windows still collecting when
// execution ends are rejected, so nothing outlives the request.
func (s *Schema) Execute(ctx context.Context, req Request) *graphql.Result {
	scope := batch.NewScope(batch.WithMaxBatch(s.maxBatch), batch.WithLogger(s.logger))
	defer scope.Close()

	return graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        batch.WithScope(ctx, scope),
	})
}

// SDL prints the stitched schema.
func (s *Schema) SDL() string {
	return s.superGraph.SDL()
}

func (s *Schema) SuperGraph() *graph.SuperGraph {
	return s.superGraph
}
