package graph

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Reserved names a standalone subschema uses to publish its SDL. They are
// never merged into the stitched schema.
const (
	ServiceFieldName = "_service"
	ServiceTypeName  = "_Service"
)

// SubGraph is one independently defined schema taking part in stitching.
type SubGraph struct {
	Name     string             // Subgraph name (e.g., "posts")
	SDL      string             // Raw SDL as published by the subgraph
	Document *ast.SchemaDocument // Parsed SDL
}

// NewSubGraph parses the SDL of a subgraph.
func NewSubGraph(name string, sdl string) (*SubGraph, error) {
	if name == "" {
		return nil, fmt.Errorf("subgraph name must not be empty")
	}

	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("failed to parse subgraph %q: %w", name, err)
	}

	return &SubGraph{
		Name:     name,
		SDL:      sdl,
		Document: doc,
	}, nil
}

func isRootTypeName(name string) bool {
	return name == "Query" || name == "Mutation"
}
