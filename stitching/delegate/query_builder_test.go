package delegate_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	gqlast "github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/delegate"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema/posts"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema/users"
)

func newSuperGraph(t *testing.T) *graph.SuperGraph {
	t.Helper()

	postGraph, err := graph.NewSubGraph(posts.Name, posts.SDL)
	if err != nil {
		t.Fatal(err)
	}
	userGraph, err := graph.NewSubGraph(users.Name, users.SDL)
	if err != nil {
		t.Fatal(err)
	}

	sg, err := graph.NewSuperGraph([]*graph.SubGraph{postGraph, userGraph}, `extend type Post { user: User }`)
	if err != nil {
		t.Fatal(err)
	}
	if err := sg.SetRequires("Post", "user", "{ userId }"); err != nil {
		t.Fatal(err)
	}
	return sg
}

// parseOperation returns the root selection of query as a synthetic field,
// together with the fragments the query defines.
func parseOperation(t *testing.T, query string) (*gqlast.Field, map[string]gqlast.Definition) {
	t.Helper()

	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	var root *gqlast.Field
	fragments := make(map[string]gqlast.Definition)
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *gqlast.OperationDefinition:
			root = &gqlast.Field{SelectionSet: d.SelectionSet}
		case *gqlast.FragmentDefinition:
			fragments[d.Name.Value] = d
		}
	}
	if root == nil {
		t.Fatal("query has no operation")
	}
	return root, fragments
}

// firstField returns the first field selected by the operation.
func firstField(t *testing.T, query string) (*gqlast.Field, map[string]gqlast.Definition) {
	t.Helper()
	root, fragments := parseOperation(t, query)
	return root.SelectionSet.Selections[0].(*gqlast.Field), fragments
}

func TestQueryBuilder_Selection(t *testing.T) {
	qb := delegate.NewQueryBuilder(newSuperGraph(t))

	tests := []struct {
		name     string
		query    string
		typeName string
		values   map[string]any
		want     string
	}{
		{
			name:     "extension field is replaced by its requirement",
			query:    `{ allPosts { items { id text user { id name } } } }`,
			typeName: "PostConnection",
			want:     "{ items { id text userId } }",
		},
		{
			name:     "requirement is not duplicated",
			query:    `{ allPosts { items { userId user { name } } } }`,
			typeName: "PostConnection",
			want:     "{ items { userId } }",
		},
		{
			name:     "aliases are dropped and merged",
			query:    `{ post(id: "1") { t: text body: text id } }`,
			typeName: "Post",
			want:     "{ text id }",
		},
		{
			name:     "skip and include follow variables",
			query:    `query ($skip: Boolean!, $show: Boolean!) { post(id: 1) { id text @skip(if: $skip) userId @include(if: $show) } }`,
			typeName: "Post",
			values:   map[string]any{"skip": true, "show": false},
			want:     "{ id }",
		},
		{
			name:     "fragments are flattened",
			query:    `{ post(id: 1) { ...PostText ... on Post { userId } ... @include(if: false) { id } } } fragment PostText on Post { text }`,
			typeName: "Post",
			want:     "{ text userId }",
		},
		{
			name:     "empty selection asks for the typename",
			query:    `{ post(id: 1) { id @skip(if: true) } }`,
			typeName: "Post",
			want:     "{ __typename }",
		},
		{
			name:     "typename is kept",
			query:    `{ user(id: 1) { __typename name } }`,
			typeName: "User",
			want:     "{ __typename name }",
		},
		{
			name:     "leaf types have no selection",
			query:    `{ allUsers { total } }`,
			typeName: "Int",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, fragments := firstField(t, tt.query)
			if tt.typeName == "Int" {
				field = field.SelectionSet.Selections[0].(*gqlast.Field)
			}

			sel, err := qb.Selection(tt.typeName, []*gqlast.Field{field}, fragments, tt.values)
			if err != nil {
				t.Fatalf("Selection() error: %v", err)
			}
			if sel.Text != tt.want {
				t.Errorf("Selection() = %q, want %q", sel.Text, tt.want)
			}
		})
	}
}

func TestQueryBuilder_SelectionVariables(t *testing.T) {
	qb := delegate.NewQueryBuilder(newSuperGraph(t))

	root, fragments := parseOperation(t, `query ($id: ID!) { a: post(id: $id) { id } b: post(id: "2") { text } }`)

	first, err := qb.Selection("Query", []*gqlast.Field{root}, fragments, map[string]any{"id": "1"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Text != "{ post(id: $_v0) { id text } }" {
		t.Errorf("Selection() = %q", first.Text)
	}

	second, err := qb.Selection("Query", []*gqlast.Field{root}, fragments, map[string]any{"id": "3"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Key() == second.Key() {
		t.Error("selections with different variable values share a key")
	}
}

func TestQueryBuilder_Build(t *testing.T) {
	qb := delegate.NewQueryBuilder(newSuperGraph(t))

	userField, fragments := firstField(t, `{ user(id: 0) { id name } }`)
	userSel, err := qb.Selection("User", []*gqlast.Field{userField}, fragments, nil)
	if err != nil {
		t.Fatal(err)
	}

	postField, fragments := firstField(t, `{ post(id: 0) { text user { name } } }`)
	postSel, err := qb.Selection("Post", []*gqlast.Field{postField}, fragments, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		op        delegate.Operation
		want      *delegate.Request
		wantError string
	}{
		{
			name: "root field with arguments",
			op: delegate.Operation{
				FieldName: "post",
				Args:      map[string]any{"id": "1"},
				Selection: postSel,
			},
			want: &delegate.Request{
				Query:     "query ($_v0: ID!) { post(id: $_v0) { text userId } }",
				Variables: map[string]any{"_v0": "1"},
			},
		},
		{
			name: "batched call through a connection",
			op: delegate.Operation{
				FieldName: "usersByIds",
				Args:      map[string]any{"ids": []string{"0", "1"}},
				Path:      []string{"items"},
				Selection: userSel,
			},
			want: &delegate.Request{
				Query:     "query ($_v0: [ID!]!) { usersByIds(ids: $_v0) { items { id name } } }",
				Variables: map[string]any{"_v0": []string{"0", "1"}},
			},
		},
		{
			name: "no arguments",
			op: delegate.Operation{
				Type:      "query",
				FieldName: "allUsers",
				Path:      []string{"items"},
				Selection: userSel,
			},
			want: &delegate.Request{
				Query: "query { allUsers { items { id name } } }",
			},
		},
		{
			name: "selection must fit the result type",
			op: delegate.Operation{
				FieldName: "usersByIds",
				Args:      map[string]any{"ids": []string{"0"}},
				Selection: userSel,
			},
			wantError: `selection on "User" does not fit usersByIds of type "UserConnection"`,
		},
		{
			name:      "unknown root field",
			op:        delegate.Operation{FieldName: "comments"},
			wantError: `field "comments" is not defined on type "Query"`,
		},
		{
			name: "unknown argument",
			op: delegate.Operation{
				FieldName: "user",
				Args:      map[string]any{"key": "0"},
			},
			wantError: `unknown argument "key"`,
		},
		{
			name:      "no mutation type",
			op:        delegate.Operation{Type: "mutation", FieldName: "createPost"},
			wantError: "schema has no Mutation type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := qb.Build(tt.op)
			if tt.wantError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantError) {
					t.Fatalf("Build() error = %v, want %q", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			if d := cmp.Diff(tt.want, got); d != "" {
				t.Errorf("Build() diff: %s", d)
			}
		})
	}
}
