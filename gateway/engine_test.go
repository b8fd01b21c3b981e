package gateway_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-stitching-gateway/gateway"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema/posts"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema/users"
)

func TestBuildEngine_Success(t *testing.T) {
	sdls := map[string]string{
		posts.Name: posts.SDL,
		users.Name: users.SDL,
	}
	hosts := map[string]string{
		posts.Name: "",
		users.Name: "http://localhost:4002/graphql",
	}

	engine, err := gateway.BuildEngineForTest(sdls, hosts, &http.Client{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine == nil {
		t.Fatal("expected non-nil engine")
	}
}

func TestBuildEngine_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sdls    map[string]string
		wantErr string
	}{
		{
			name:    "invalid SDL",
			sdls:    map[string]string{posts.Name: `this is not valid SDL { { { ]]]`, users.Name: users.SDL},
			wantErr: "posts",
		},
		{
			name:    "no SDLs",
			sdls:    map[string]string{},
			wantErr: "at least one subgraph",
		},
		{
			name:    "extended type is missing",
			sdls:    map[string]string{users.Name: users.SDL},
			wantErr: "Post",
		},
		{
			name:    "in-process service outside the catalog",
			sdls:    map[string]string{posts.Name: posts.SDL, users.Name: users.SDL, "comments": `type Query { comment: String }`},
			wantErr: `unknown subschema "comments"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gateway.BuildEngineForTest(tt.sdls, map[string]string{}, &http.Client{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCopyMap(t *testing.T) {
	orig := map[string]string{"a": "1", "b": "2"}
	cp := gateway.CopyMapForTest(orig)

	if d := cmp.Diff(orig, cp); d != "" {
		t.Fatalf("copy diff: %s", d)
	}

	// Mutation of copy must not affect original.
	cp["a"] = "changed"
	if orig["a"] != "1" {
		t.Error("mutation of copy affected original")
	}
}
