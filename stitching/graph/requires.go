package graph

import (
	"fmt"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// SetRequires declares that the extension field typeName.fieldName needs the
// fields of selectionSet (e.g. "{ userId }") on its parent object.
func (sg *SuperGraph) SetRequires(typeName, fieldName, selectionSet string) error {
	ext := sg.Extension(typeName, fieldName)
	if ext == nil {
		return fmt.Errorf("%s.%s is not a gateway extension field", typeName, fieldName)
	}

	fields, err := parseSelectionRequirement(selectionSet)
	if err != nil {
		return fmt.Errorf("invalid selection set for %s.%s: %w", typeName, fieldName, err)
	}

	def := sg.Schema.Types[typeName]
	for _, f := range fields {
		if def == nil || def.Fields.ForName(f) == nil {
			return fmt.Errorf("required field %q does not exist on %s", f, typeName)
		}
		if sg.Extension(typeName, f) != nil {
			return fmt.Errorf("required field %q on %s is itself resolved by the gateway", f, typeName)
		}
	}

	ext.Requires = fields
	return nil
}

// parseSelectionRequirement returns the field names of a flat selection set.
func parseSelectionRequirement(selectionSet string) ([]string, error) {
	l := lexer.New(selectionSet)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse error: %v", p.Errors())
	}

	var fields []string
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			return nil, fmt.Errorf("expected a selection set")
		}

		for _, sel := range op.SelectionSet {
			field, ok := sel.(*ast.Field)
			if !ok {
				return nil, fmt.Errorf("fragments are not supported in selection requirements")
			}
			if len(field.SelectionSet) > 0 {
				return nil, fmt.Errorf("nested selection on %q is not supported", field.Name.String())
			}
			fields = append(fields, field.Name.String())
		}
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("selection set is empty")
	}

	return fields, nil
}
