package subschema

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// serviceSDL lets a standalone subschema publish its own SDL to a gateway.
const serviceSDL = `
extend type Query {
  _service: _Service!
}

type _Service {
  sdl: String
}
`

// Subschema is an independently defined, executable GraphQL schema.
type Subschema struct {
	Name   string
	SDL    string // Published SDL, without the _service extension
	Schema graphql.Schema
}

// New builds an executable subschema from its SDL and a resolver table.
// Fields without a resolver read the property of the same name from their
// parent value.
func New(name, sdl string, resolvers graph.FieldResolvers) (*Subschema, error) {
	src, err := gqlparser.LoadSchema(
		&ast.Source{Name: name, Input: sdl},
		&ast.Source{Name: name + "/service", Input: serviceSDL},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for subschema %q: %w", name, err)
	}

	s := &Subschema{
		Name: name,
		SDL:  sdl,
	}

	table := graph.FieldResolvers{}
	for typeName, fields := range resolvers {
		for fieldName, fn := range fields {
			table.Set(typeName, fieldName, fn)
		}
	}
	table.Set("Query", graph.ServiceFieldName, func(graphql.ResolveParams) (any, error) {
		return map[string]any{"sdl": s.SDL}, nil
	})

	schema, err := graph.BuildSchema(src, table)
	if err != nil {
		return nil, fmt.Errorf("failed to build subschema %q: %w", name, err)
	}
	s.Schema = schema

	return s, nil
}

// Execute runs one operation against the subschema.
func (s *Subschema) Execute(ctx context.Context, query string, variables map[string]any, operationName string) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s.Schema,
		RequestString:  query,
		VariableValues: variables,
		OperationName:  operationName,
		Context:        ctx,
	})
}

// StringArgs converts a list argument of IDs or strings into a string slice.
func StringArgs(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprint(item))
	}
	return out
}
