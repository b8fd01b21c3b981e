package graph_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
)

const postSDL = `
type Post {
  id: ID!
  text: String
  userId: ID!
}

type PostConnection {
  items: [Post]!
  total: Int!
}

type Query {
  post(id: ID!): Post
  postsByIds(ids: [ID!]!): PostConnection!
  allPosts: PostConnection!
}`

const userSDL = `
type User {
  id: ID!
  name: String
}

type UserConnection {
  items: [User]!
  total: Int!
}

type Query {
  user(id: ID!): User
  usersByIds(ids: [ID!]!): UserConnection!
  allUsers: UserConnection!
}

extend type Query {
  _service: _Service!
}

type _Service {
  sdl: String
}`

const extensionTypeDefs = `
extend type Post {
  user: User
}`

func mustSubGraph(t *testing.T, name, sdl string) *graph.SubGraph {
	t.Helper()
	sg, err := graph.NewSubGraph(name, sdl)
	if err != nil {
		t.Fatalf("NewSubGraph(%q) error: %v", name, err)
	}
	return sg
}

func TestNewSuperGraph(t *testing.T) {
	posts := mustSubGraph(t, "posts", postSDL)
	users := mustSubGraph(t, "users", userSDL)

	sg, err := graph.NewSuperGraph([]*graph.SubGraph{posts, users}, extensionTypeDefs)
	if err != nil {
		t.Fatalf("NewSuperGraph() error: %v", err)
	}

	if d := cmp.Diff(
		[]string{"allPosts", "allUsers", "post", "postsByIds", "user", "usersByIds"},
		sg.RootFields("Query"),
	); d != "" {
		t.Errorf("RootFields() diff: %s", d)
	}

	owners := map[[2]string]string{
		{"Query", "post"}:       "posts",
		{"Query", "allPosts"}:   "posts",
		{"Query", "usersByIds"}: "users",
		{"Post", "text"}:        "posts",
		{"User", "name"}:        "users",
		{"Post", "user"}:        "",
	}
	for k, want := range owners {
		got := ""
		if o := sg.Owner(k[0], k[1]); o != nil {
			got = o.Name
		}
		if got != want {
			t.Errorf("Owner(%s.%s) = %q, want %q", k[0], k[1], got, want)
		}
	}

	post := sg.Schema.Types["Post"]
	if post == nil || post.Fields.ForName("user") == nil {
		t.Fatal("merged Post is missing the extension field user")
	}
	if got := post.Fields.ForName("user").Type.String(); got != "User" {
		t.Errorf("Post.user type = %q, want User", got)
	}

	if sg.Schema.Types[graph.ServiceTypeName] != nil {
		t.Error("reserved _Service type leaked into the merged schema")
	}
	if sg.Schema.Query.Fields.ForName(graph.ServiceFieldName) != nil {
		t.Error("reserved _service field leaked into the merged schema")
	}

	sdl := sg.SDL()
	for _, want := range []string{"type Post", "user: User", "usersByIds(ids: [ID!]!): UserConnection!"} {
		if !strings.Contains(sdl, want) {
			t.Errorf("SDL() does not contain %q:\n%s", want, sdl)
		}
	}
}

func TestNewSuperGraph_Errors(t *testing.T) {
	tests := []struct {
		name     string
		sdls     map[string]string
		order    []string
		typeDefs string
		wantErr  string
	}{
		{
			name:    "no subgraphs",
			wantErr: "at least one subgraph",
		},
		{
			name:    "duplicate root field",
			sdls:    map[string]string{"a": postSDL, "b": `type Query { post(id: ID!): String }`},
			order:   []string{"a", "b"},
			wantErr: `root field Query.post is defined by both "a" and "b"`,
		},
		{
			name:    "duplicate type",
			sdls:    map[string]string{"a": postSDL, "b": `type Post { id: ID! } type Query { other: Post }`},
			order:   []string{"a", "b"},
			wantErr: `type "Post" is defined by both "a" and "b"`,
		},
		{
			name:     "definition in typeDefs",
			sdls:     map[string]string{"a": postSDL},
			order:    []string{"a"},
			typeDefs: `type Extra { id: ID }`,
			wantErr:  "may only extend existing types",
		},
		{
			name:     "extension of unknown type",
			sdls:     map[string]string{"a": postSDL},
			order:    []string{"a"},
			typeDefs: `extend type Comment { post: Post }`,
			wantErr:  `extend unknown type "Comment"`,
		},
		{
			name:     "dangling type reference",
			sdls:     map[string]string{"a": postSDL},
			order:    []string{"a"},
			typeDefs: extensionTypeDefs,
			wantErr:  "composition failed",
		},
		{
			name:    "non root extension in subgraph",
			sdls:    map[string]string{"a": postSDL + "\nextend type Post { extra: String }"},
			order:   []string{"a"},
			wantErr: `extension of type "Post" is not supported`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subs []*graph.SubGraph
			for _, name := range tt.order {
				subs = append(subs, mustSubGraph(t, name, tt.sdls[name]))
			}

			_, err := graph.NewSuperGraph(subs, tt.typeDefs)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSuperGraph_SetRequires(t *testing.T) {
	sg, err := graph.NewSuperGraph([]*graph.SubGraph{
		mustSubGraph(t, "posts", postSDL),
		mustSubGraph(t, "users", userSDL),
	}, extensionTypeDefs)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		typeName  string
		fieldName string
		selection string
		want      []string
		wantErr   bool
	}{
		{name: "flat selection", typeName: "Post", fieldName: "user", selection: "{ userId }", want: []string{"userId"}},
		{name: "several fields", typeName: "Post", fieldName: "user", selection: "{ userId id }", want: []string{"userId", "id"}},
		{name: "not an extension", typeName: "Post", fieldName: "text", selection: "{ userId }", wantErr: true},
		{name: "unknown field", typeName: "Post", fieldName: "user", selection: "{ authorId }", wantErr: true},
		{name: "nested selection", typeName: "Post", fieldName: "user", selection: "{ userId { id } }", wantErr: true},
		{name: "requires itself", typeName: "Post", fieldName: "user", selection: "{ user }", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sg.SetRequires(tt.typeName, tt.fieldName, tt.selection)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetRequires() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if d := cmp.Diff(tt.want, sg.Requires(tt.typeName)); d != "" {
				t.Errorf("Requires() diff: %s", d)
			}
		})
	}
}
