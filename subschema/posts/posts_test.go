package posts_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema/posts"
)

func TestPosts(t *testing.T) {
	s, err := posts.New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		name      string
		query     string
		variables map[string]any
		want      any
	}{
		{
			name:  "post by id",
			query: `{ post(id: "1") { id text userId } }`,
			want: map[string]any{
				"post": map[string]any{"id": "1", "text": "Hello graphql-tools", "userId": "1"},
			},
		},
		{
			name:  "numeric literal id matches by string value",
			query: `{ post(id: 2) { text } }`,
			want: map[string]any{
				"post": map[string]any{"text": "Example post"},
			},
		},
		{
			name:  "unknown post is null",
			query: `{ post(id: "42") { id } }`,
			want:  map[string]any{"post": nil},
		},
		{
			name:      "posts by ids keep order and placeholders",
			query:     `query ($ids: [ID!]!) { postsByIds(ids: $ids) { items { id } total } }`,
			variables: map[string]any{"ids": []any{"2", "9", "0"}},
			want: map[string]any{
				"postsByIds": map[string]any{
					"items": []any{map[string]any{"id": "2"}, nil, map[string]any{"id": "0"}},
					"total": 3,
				},
			},
		},
		{
			name:  "posts by no ids",
			query: `{ postsByIds(ids: []) { items { id } total } }`,
			want: map[string]any{
				"postsByIds": map[string]any{"items": []any{}, "total": 0},
			},
		},
		{
			name:  "all posts",
			query: `{ allPosts { items { id userId } total } }`,
			want: map[string]any{
				"allPosts": map[string]any{
					"items": []any{
						map[string]any{"id": "0", "userId": "0"},
						map[string]any{"id": "1", "userId": "1"},
						map[string]any{"id": "2", "userId": "0"},
					},
					"total": 3,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Execute(t.Context(), tt.query, tt.variables, "")
			if res.HasErrors() {
				t.Fatalf("unexpected errors: %v", res.Errors)
			}
			if d := cmp.Diff(tt.want, res.Data); d != "" {
				t.Errorf("data diff: %s", d)
			}
		})
	}
}

func TestNewWithRecords(t *testing.T) {
	s, err := posts.NewWithRecords([]posts.Post{{ID: 7, Text: "orphan", UserID: 99}})
	if err != nil {
		t.Fatal(err)
	}

	res := s.Execute(t.Context(), `{ allPosts { items { id userId } total } }`, nil, "")
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := map[string]any{
		"allPosts": map[string]any{
			"items": []any{map[string]any{"id": "7", "userId": "99"}},
			"total": 1,
		},
	}
	if d := cmp.Diff(want, res.Data); d != "" {
		t.Errorf("data diff: %s", d)
	}
}
