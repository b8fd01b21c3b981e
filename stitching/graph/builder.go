package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/graphql-go/graphql"
	gqlast "github.com/graphql-go/graphql/language/ast"
	"github.com/vektah/gqlparser/v2/ast"
)

// FieldResolvers is a resolver table keyed by type name and field name.
type FieldResolvers map[string]map[string]graphql.FieldResolveFn

// Set registers fn for typeName.fieldName.
func (r FieldResolvers) Set(typeName, fieldName string, fn graphql.FieldResolveFn) {
	if r[typeName] == nil {
		r[typeName] = make(map[string]graphql.FieldResolveFn)
	}
	r[typeName][fieldName] = fn
}

var builtinScalars = map[string]*graphql.Scalar{
	"ID":      graphql.ID,
	"String":  graphql.String,
	"Int":     graphql.Int,
	"Float":   graphql.Float,
	"Boolean": graphql.Boolean,
}

type schemaBuilder struct {
	src       *ast.Schema
	resolvers FieldResolvers
	types     map[string]graphql.Type
}

// BuildSchema turns a validated schema into an executable graphql-go schema.
// Fields without an entry in resolvers use graphql-go's default resolver,
// which reads the field from a map or a json-tagged struct.
func BuildSchema(src *ast.Schema, resolvers FieldResolvers) (graphql.Schema, error) {
	if src.Query == nil {
		return graphql.Schema{}, fmt.Errorf("schema has no Query type")
	}

	b := &schemaBuilder{
		src:       src,
		resolvers: resolvers,
		types:     make(map[string]graphql.Type),
	}

	for name, s := range builtinScalars {
		b.types[name] = s
	}

	for typeName, fields := range resolvers {
		def := src.Types[typeName]
		if def == nil {
			return graphql.Schema{}, fmt.Errorf("resolver for unknown type %q", typeName)
		}
		for fieldName := range fields {
			if def.Fields.ForName(fieldName) == nil {
				return graphql.Schema{}, fmt.Errorf("resolver for unknown field %s.%s", typeName, fieldName)
			}
		}
	}

	names := make([]string, 0, len(src.Types))
	for name, def := range src.Types {
		if !def.BuiltIn {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	named := make([]graphql.Type, 0, len(names))
	for _, name := range names {
		t, err := b.define(src.Types[name])
		if err != nil {
			return graphql.Schema{}, err
		}
		b.types[name] = t
		named = append(named, t)
	}

	cfg := graphql.SchemaConfig{
		Query: b.types[src.Query.Name].(*graphql.Object),
		Types: named,
	}
	if src.Mutation != nil {
		cfg.Mutation = b.types[src.Mutation.Name].(*graphql.Object)
	}

	return graphql.NewSchema(cfg)
}

func (b *schemaBuilder) define(def *ast.Definition) (graphql.Type, error) {
	switch def.Kind {
	case ast.Object:
		return graphql.NewObject(graphql.ObjectConfig{
			Name:        def.Name,
			Description: def.Description,
			Fields:      graphql.FieldsThunk(func() graphql.Fields { return b.fields(def) }),
		}), nil
	case ast.Enum:
		values := graphql.EnumValueConfigMap{}
		for _, v := range def.EnumValues {
			values[v.Name] = &graphql.EnumValueConfig{
				Value:             v.Name,
				Description:       v.Description,
				DeprecationReason: deprecationReason(v.Directives),
			}
		}
		return graphql.NewEnum(graphql.EnumConfig{
			Name:        def.Name,
			Description: def.Description,
			Values:      values,
		}), nil
	case ast.InputObject:
		return graphql.NewInputObject(graphql.InputObjectConfig{
			Name:        def.Name,
			Description: def.Description,
			Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
				return b.inputFields(def)
			}),
		}), nil
	case ast.Scalar:
		if s, ok := builtinScalars[def.Name]; ok {
			return s, nil
		}
		return passthroughScalar(def), nil
	default:
		return nil, fmt.Errorf("type %q: %s types are not supported", def.Name, def.Kind)
	}
}

func (b *schemaBuilder) fields(def *ast.Definition) graphql.Fields {
	fields := graphql.Fields{}
	for _, f := range def.Fields {
		if strings.HasPrefix(f.Name, "__") {
			continue
		}

		args := graphql.FieldConfigArgument{}
		for _, a := range f.Arguments {
			arg := &graphql.ArgumentConfig{
				Type:        b.ref(a.Type).(graphql.Input),
				Description: a.Description,
			}
			if a.DefaultValue != nil {
				if v, err := a.DefaultValue.Value(nil); err == nil {
					arg.DefaultValue = v
				}
			}
			args[a.Name] = arg
		}

		fields[f.Name] = &graphql.Field{
			Name:              f.Name,
			Type:              b.ref(f.Type).(graphql.Output),
			Args:              args,
			Description:       f.Description,
			DeprecationReason: deprecationReason(f.Directives),
			Resolve:           b.resolvers[def.Name][f.Name],
		}
	}
	return fields
}

func (b *schemaBuilder) inputFields(def *ast.Definition) graphql.InputObjectConfigFieldMap {
	fields := graphql.InputObjectConfigFieldMap{}
	for _, f := range def.Fields {
		field := &graphql.InputObjectFieldConfig{
			Type:        b.ref(f.Type).(graphql.Input),
			Description: f.Description,
		}
		if f.DefaultValue != nil {
			if v, err := f.DefaultValue.Value(nil); err == nil {
				field.DefaultValue = v
			}
		}
		fields[f.Name] = field
	}
	return fields
}

// ref resolves a type reference. Named types are defined before any thunk runs.
func (b *schemaBuilder) ref(t *ast.Type) graphql.Type {
	var out graphql.Type
	if t.Elem != nil {
		out = graphql.NewList(b.ref(t.Elem))
	} else {
		out = b.types[t.NamedType]
	}
	if t.NonNull {
		out = graphql.NewNonNull(out)
	}
	return out
}

func deprecationReason(directives ast.DirectiveList) string {
	d := directives.ForName("deprecated")
	if d == nil {
		return ""
	}
	if arg := d.Arguments.ForName("reason"); arg != nil {
		return arg.Value.Raw
	}
	return "No longer supported"
}

// passthroughScalar serializes custom scalars as they come.
func passthroughScalar(def *ast.Definition) *graphql.Scalar {
	identity := func(v any) any { return v }
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:         def.Name,
		Description:  def.Description,
		Serialize:    identity,
		ParseValue:   identity,
		ParseLiteral: func(v gqlast.Value) any { return v.GetValue() },
	})
}
