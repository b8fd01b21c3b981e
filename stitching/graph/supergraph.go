package graph

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// Extension is a field the gateway adds to a type owned by a subgraph.
// It is resolved by the gateway and never sent to the owning subgraph.
type Extension struct {
	TypeName  string
	FieldName string
	Requires  []string // Parent fields that must be fetched before the field resolves
}

// SuperGraph is the merged schema of all subgraphs plus gateway extensions.
type SuperGraph struct {
	Schema    *ast.Schema
	SubGraphs []*SubGraph

	rootOwners map[string]map[string]*SubGraph // root type → field → owner
	typeOwners map[string]*SubGraph            // type → owner
	extensions map[string]map[string]*Extension
}

// NewSuperGraph merges the subgraphs and applies the gateway typeDefs, which
// may only contain `extend type` definitions.
//
// Root types are merged field by field. Every other type must be defined by
// exactly one subgraph.
func NewSuperGraph(subGraphs []*SubGraph, typeDefs string) (*SuperGraph, error) {
	if len(subGraphs) == 0 {
		return nil, fmt.Errorf("composition requires at least one subgraph")
	}

	sg := &SuperGraph{
		SubGraphs:  subGraphs,
		rootOwners: make(map[string]map[string]*SubGraph),
		typeOwners: make(map[string]*SubGraph),
		extensions: make(map[string]map[string]*Extension),
	}

	merged := &ast.SchemaDocument{}
	roots := make(map[string]*ast.Definition)
	names := make(map[string]bool)

	for _, sub := range subGraphs {
		if names[sub.Name] {
			return nil, fmt.Errorf("subgraph %q is registered twice", sub.Name)
		}
		names[sub.Name] = true

		for _, def := range sub.Document.Definitions {
			if err := sg.mergeDefinition(merged, roots, sub, def); err != nil {
				return nil, err
			}
		}

		for _, ext := range sub.Document.Extensions {
			if !isRootTypeName(ext.Name) {
				return nil, fmt.Errorf("subgraph %q: extension of type %q is not supported", sub.Name, ext.Name)
			}
			if err := sg.mergeDefinition(merged, roots, sub, ext); err != nil {
				return nil, err
			}
		}

		merged.Directives = append(merged.Directives, sub.Document.Directives...)
	}

	var rootDefs ast.DefinitionList
	for _, name := range []string{"Query", "Mutation"} {
		if root, ok := roots[name]; ok {
			rootDefs = append(rootDefs, root)
		}
	}
	merged.Definitions = append(rootDefs, merged.Definitions...)

	if typeDefs != "" {
		if err := sg.applyTypeDefs(merged, typeDefs); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(merged)

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "supergraph", Input: buf.String()})
	if err != nil {
		return nil, fmt.Errorf("composition failed: %w", err)
	}
	sg.Schema = schema

	return sg, nil
}

func (sg *SuperGraph) mergeDefinition(merged *ast.SchemaDocument, roots map[string]*ast.Definition, sub *SubGraph, def *ast.Definition) error {
	if def.Name == ServiceTypeName {
		return nil
	}

	if isRootTypeName(def.Name) {
		root, ok := roots[def.Name]
		if !ok {
			root = &ast.Definition{Kind: ast.Object, Name: def.Name}
			roots[def.Name] = root
			sg.rootOwners[def.Name] = make(map[string]*SubGraph)
		}

		for _, field := range def.Fields {
			if field.Name == ServiceFieldName {
				continue
			}
			if owner, dup := sg.rootOwners[def.Name][field.Name]; dup {
				return fmt.Errorf("root field %s.%s is defined by both %q and %q", def.Name, field.Name, owner.Name, sub.Name)
			}
			sg.rootOwners[def.Name][field.Name] = sub
			root.Fields = append(root.Fields, field)
		}
		return nil
	}

	if owner, dup := sg.typeOwners[def.Name]; dup {
		return fmt.Errorf("type %q is defined by both %q and %q", def.Name, owner.Name, sub.Name)
	}
	sg.typeOwners[def.Name] = sub
	merged.Definitions = append(merged.Definitions, def)

	return nil
}

func (sg *SuperGraph) applyTypeDefs(merged *ast.SchemaDocument, typeDefs string) error {
	doc, err := parser.ParseSchema(&ast.Source{Name: "typeDefs", Input: typeDefs})
	if err != nil {
		return fmt.Errorf("failed to parse gateway typeDefs: %w", err)
	}

	if len(doc.Definitions) > 0 {
		return fmt.Errorf("gateway typeDefs may only extend existing types, found definition of %q", doc.Definitions[0].Name)
	}

	for _, ext := range doc.Extensions {
		if ext.Kind != ast.Object {
			return fmt.Errorf("gateway typeDefs may only extend object types, %q is %s", ext.Name, ext.Kind)
		}
		if _, ok := sg.typeOwners[ext.Name]; !ok && sg.rootOwners[ext.Name] == nil {
			return fmt.Errorf("gateway typeDefs extend unknown type %q", ext.Name)
		}

		for _, field := range ext.Fields {
			if sg.Extension(ext.Name, field.Name) != nil {
				return fmt.Errorf("extension field %s.%s is declared twice", ext.Name, field.Name)
			}
			if sg.extensions[ext.Name] == nil {
				sg.extensions[ext.Name] = make(map[string]*Extension)
			}
			sg.extensions[ext.Name][field.Name] = &Extension{
				TypeName:  ext.Name,
				FieldName: field.Name,
			}
		}

		merged.Extensions = append(merged.Extensions, ext)
	}

	return nil
}

// Owner returns the subgraph that resolves typeName.fieldName, or nil when
// the field is resolved by the gateway.
func (sg *SuperGraph) Owner(typeName, fieldName string) *SubGraph {
	if sg.Extension(typeName, fieldName) != nil {
		return nil
	}
	if isRootTypeName(typeName) {
		return sg.rootOwners[typeName][fieldName]
	}
	return sg.typeOwners[typeName]
}

// Extension returns the gateway extension for typeName.fieldName, if any.
func (sg *SuperGraph) Extension(typeName, fieldName string) *Extension {
	return sg.extensions[typeName][fieldName]
}

// Extensions lists every gateway extension ordered by type and field name.
func (sg *SuperGraph) Extensions() []*Extension {
	var out []*Extension
	for _, fields := range sg.extensions {
		for _, ext := range fields {
			out = append(out, ext)
		}
	}
	slices.SortFunc(out, func(a, b *Extension) int {
		return cmp.Or(
			strings.Compare(a.TypeName, b.TypeName),
			strings.Compare(a.FieldName, b.FieldName),
		)
	})
	return out
}

// RootFields returns the root fields of typeName owned by subgraphs, sorted.
func (sg *SuperGraph) RootFields(typeName string) []string {
	fields := make([]string, 0, len(sg.rootOwners[typeName]))
	for name := range sg.rootOwners[typeName] {
		fields = append(fields, name)
	}
	slices.Sort(fields)
	return fields
}

// Requires returns the union of the selection requirements declared by the
// extension fields of typeName.
func (sg *SuperGraph) Requires(typeName string) []string {
	var out []string
	for _, ext := range sg.Extensions() {
		if ext.TypeName != typeName {
			continue
		}
		for _, f := range ext.Requires {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// SDL prints the merged schema.
func (sg *SuperGraph) SDL() string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchema(sg.Schema)
	return buf.String()
}
