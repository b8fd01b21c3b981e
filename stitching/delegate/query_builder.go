package delegate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	gqlast "github.com/graphql-go/graphql/language/ast"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
	"github.com/vektah/gqlparser/v2/ast"
)

// QueryBuilder turns gateway selections into operations for a subschema.
type QueryBuilder struct {
	superGraph *graph.SuperGraph
}

func NewQueryBuilder(superGraph *graph.SuperGraph) *QueryBuilder {
	return &QueryBuilder{superGraph: superGraph}
}

type variable struct {
	name  string
	typ   string
	value any
}

// Selection is a delegated selection set on TypeName together with the
// variables its arguments were turned into.
type Selection struct {
	TypeName string
	Text     string // Empty for leaf types

	variables []variable
}

// Key identifies the selection including its variable values.
func (s *Selection) Key() string {
	var sb strings.Builder
	sb.WriteString(s.TypeName)
	sb.WriteString(s.Text)
	for _, v := range s.variables {
		fmt.Fprintf(&sb, " %s=%#v", v.name, v.value)
	}
	return sb.String()
}

// Operation describes one root field call on a subschema.
type Operation struct {
	Type      string // "query" or "mutation"
	FieldName string
	Args      map[string]any
	Path      []string // Fields leading from the root field's type to Selection
	Selection *Selection
}

type selectionBuilder struct {
	schema     *ast.Schema
	superGraph *graph.SuperGraph
	fragments  map[string]gqlast.Definition
	values     map[string]any
	variables  []variable
}

// Selection merges the selection sets of fields into one delegated selection
// on typeName.
//
// Aliases are dropped because delegated results are read by field name.
// Gateway-resolved fields are removed and replaced by the parent fields they
// require.
func (qb *QueryBuilder) Selection(typeName string, fields []*gqlast.Field, fragments map[string]gqlast.Definition, values map[string]any) (*Selection, error) {
	def := qb.superGraph.Schema.Types[typeName]
	if def == nil {
		return nil, fmt.Errorf("unknown type %q", typeName)
	}

	sel := &Selection{TypeName: typeName}
	if def.Kind != ast.Object {
		return sel, nil
	}

	var selections []gqlast.Selection
	for _, f := range fields {
		if f.SelectionSet != nil {
			selections = append(selections, f.SelectionSet.Selections...)
		}
	}

	b := &selectionBuilder{
		schema:     qb.superGraph.Schema,
		superGraph: qb.superGraph,
		fragments:  fragments,
		values:     values,
	}

	text, err := b.selectionSet(def, selections)
	if err != nil {
		return nil, err
	}

	sel.Text = text
	sel.variables = b.variables
	return sel, nil
}

// Build renders op as a request.
func (qb *QueryBuilder) Build(op Operation) (*Request, error) {
	opType := op.Type
	if opType == "" {
		opType = "query"
	}

	rootName := "Query"
	if opType == "mutation" {
		rootName = "Mutation"
	}
	root := qb.superGraph.Schema.Types[rootName]
	if root == nil {
		return nil, fmt.Errorf("schema has no %s type", rootName)
	}
	field := root.Fields.ForName(op.FieldName)
	if field == nil {
		return nil, fmt.Errorf("field %q is not defined on type %q", op.FieldName, rootName)
	}

	b := &selectionBuilder{schema: qb.superGraph.Schema}
	if op.Selection != nil {
		b.variables = slices.Clone(op.Selection.variables)
	}

	argNames := make([]string, 0, len(op.Args))
	for name := range op.Args {
		argNames = append(argNames, name)
	}
	slices.Sort(argNames)

	var args []string
	for _, name := range argNames {
		argDef := field.Arguments.ForName(name)
		if argDef == nil {
			return nil, fmt.Errorf("unknown argument %q on field %s.%s", name, rootName, op.FieldName)
		}
		args = append(args, name+": "+b.variable(argDef.Type.String(), op.Args[name]))
	}

	typeName := field.Type.Name()
	var path strings.Builder
	for _, name := range op.Path {
		def := qb.superGraph.Schema.Types[typeName]
		if def == nil || def.Fields.ForName(name) == nil {
			return nil, fmt.Errorf("path field %q is not defined on type %q", name, typeName)
		}
		path.WriteString(" { ")
		path.WriteString(name)
		typeName = def.Fields.ForName(name).Type.Name()
	}

	if op.Selection != nil && op.Selection.TypeName != typeName {
		return nil, fmt.Errorf("selection on %q does not fit %s of type %q", op.Selection.TypeName, strings.Join(append([]string{op.FieldName}, op.Path...), "."), typeName)
	}

	var sb strings.Builder
	sb.WriteString(opType)
	if len(b.variables) > 0 {
		sb.WriteString(" (")
		for i, v := range b.variables {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(v.name)
			sb.WriteString(": ")
			sb.WriteString(v.typ)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" { ")
	sb.WriteString(op.FieldName)
	if len(args) > 0 {
		sb.WriteString("(")
		sb.WriteString(strings.Join(args, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(path.String())
	if op.Selection != nil && op.Selection.Text != "" {
		sb.WriteString(" ")
		sb.WriteString(op.Selection.Text)
	}
	sb.WriteString(strings.Repeat(" }", len(op.Path)))
	sb.WriteString(" }")

	req := &Request{Query: sb.String()}
	if len(b.variables) > 0 {
		req.Variables = make(map[string]any, len(b.variables))
		for _, v := range b.variables {
			req.Variables[v.name] = v.value
		}
	}

	return req, nil
}

type fieldNode struct {
	name       string
	def        *ast.FieldDefinition
	args       string
	selections []gqlast.Selection
}

func (b *selectionBuilder) selectionSet(def *ast.Definition, selections []gqlast.Selection) (string, error) {
	var (
		nodes    []*fieldNode
		byName   = make(map[string]*fieldNode)
		requires []string
	)

	if err := b.collect(def, selections, &nodes, byName, &requires); err != nil {
		return "", err
	}

	for _, name := range requires {
		if byName[name] != nil {
			continue
		}
		fd := def.Fields.ForName(name)
		if fd == nil {
			return "", fmt.Errorf("required field %q is not defined on type %q", name, def.Name)
		}
		n := &fieldNode{name: name, def: fd}
		byName[name] = n
		nodes = append(nodes, n)
	}

	if len(nodes) == 0 {
		return "{ __typename }", nil
	}

	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		part, err := b.render(n)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	return "{ " + strings.Join(parts, " ") + " }", nil
}

func (b *selectionBuilder) collect(def *ast.Definition, selections []gqlast.Selection, nodes *[]*fieldNode, byName map[string]*fieldNode, requires *[]string) error {
	for _, sel := range selections {
		switch s := sel.(type) {
		case *gqlast.Field:
			if !b.included(s.Directives) {
				continue
			}

			name := s.Name.Value
			if name == "__typename" {
				if byName[name] == nil {
					n := &fieldNode{name: name}
					byName[name] = n
					*nodes = append(*nodes, n)
				}
				continue
			}
			if strings.HasPrefix(name, "__") {
				continue
			}

			if ext := b.superGraph.Extension(def.Name, name); ext != nil {
				*requires = append(*requires, ext.Requires...)
				continue
			}

			fd := def.Fields.ForName(name)
			if fd == nil {
				return fmt.Errorf("field %q is not defined on type %q", name, def.Name)
			}

			n, ok := byName[name]
			if !ok {
				args, err := b.arguments(def.Name, fd, s.Arguments)
				if err != nil {
					return err
				}
				n = &fieldNode{name: name, def: fd, args: args}
				byName[name] = n
				*nodes = append(*nodes, n)
			}
			if s.SelectionSet != nil {
				n.selections = append(n.selections, s.SelectionSet.Selections...)
			}

		case *gqlast.InlineFragment:
			if !b.included(s.Directives) || !appliesTo(s.TypeCondition, def) {
				continue
			}
			if s.SelectionSet == nil {
				continue
			}
			if err := b.collect(def, s.SelectionSet.Selections, nodes, byName, requires); err != nil {
				return err
			}

		case *gqlast.FragmentSpread:
			if !b.included(s.Directives) {
				continue
			}
			frag, ok := b.fragments[s.Name.Value].(*gqlast.FragmentDefinition)
			if !ok {
				return fmt.Errorf("unknown fragment %q", s.Name.Value)
			}
			if !appliesTo(frag.TypeCondition, def) || frag.SelectionSet == nil {
				continue
			}
			if err := b.collect(def, frag.SelectionSet.Selections, nodes, byName, requires); err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *selectionBuilder) render(n *fieldNode) (string, error) {
	if n.def == nil {
		return n.name, nil
	}

	out := n.name + n.args

	child := b.schema.Types[n.def.Type.Name()]
	if child == nil || child.Kind != ast.Object {
		return out, nil
	}

	sub, err := b.selectionSet(child, n.selections)
	if err != nil {
		return "", err
	}
	return out + " " + sub, nil
}

func (b *selectionBuilder) arguments(typeName string, fd *ast.FieldDefinition, args []*gqlast.Argument) (string, error) {
	if len(args) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(args))
	for _, a := range args {
		argDef := fd.Arguments.ForName(a.Name.Value)
		if argDef == nil {
			return "", fmt.Errorf("unknown argument %q on field %s.%s", a.Name.Value, typeName, fd.Name)
		}
		parts = append(parts, a.Name.Value+": "+b.variable(argDef.Type.String(), b.value(a.Value)))
	}

	return "(" + strings.Join(parts, ", ") + ")", nil
}

// variable registers value under a generated name and returns its reference.
func (b *selectionBuilder) variable(typ string, value any) string {
	name := "_v" + strconv.Itoa(len(b.variables))
	b.variables = append(b.variables, variable{name: name, typ: typ, value: value})
	return "$" + name
}

func (b *selectionBuilder) included(directives []*gqlast.Directive) bool {
	for _, d := range directives {
		name := d.Name.Value
		if name != "skip" && name != "include" {
			continue
		}

		cond := false
		for _, arg := range d.Arguments {
			if arg.Name.Value == "if" {
				cond, _ = b.value(arg.Value).(bool)
			}
		}

		if name == "skip" && cond {
			return false
		}
		if name == "include" && !cond {
			return false
		}
	}
	return true
}

func (b *selectionBuilder) value(v gqlast.Value) any {
	switch v := v.(type) {
	case *gqlast.Variable:
		return b.values[v.Name.Value]
	case *gqlast.IntValue:
		if i, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return i
		}
		return v.Value
	case *gqlast.FloatValue:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return v.Value
	case *gqlast.StringValue:
		return v.Value
	case *gqlast.BooleanValue:
		return v.Value
	case *gqlast.EnumValue:
		return v.Value
	case *gqlast.ListValue:
		out := make([]any, 0, len(v.Values))
		for _, item := range v.Values {
			out = append(out, b.value(item))
		}
		return out
	case *gqlast.ObjectValue:
		out := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name.Value] = b.value(f.Value)
		}
		return out
	default:
		return nil
	}
}

func appliesTo(cond *gqlast.Named, def *ast.Definition) bool {
	return cond == nil || cond.Name == nil || cond.Name.Value == def.Name
}
