// Package posts is the Post service: a subschema that owns post records.
package posts

import (
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema"
)

const Name = "posts"

const SDL = `
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
    }
`

type Post struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	UserID int    `json:"userId"`
}

func (p Post) Key() string {
	return strconv.Itoa(p.ID)
}

// SampleRecords returns the posts the service starts with.
func SampleRecords() []Post {
	return []Post{
		{ID: 0, Text: "Lorem ipsum", UserID: 0},
		{ID: 1, Text: "Hello graphql-tools", UserID: 1},
		{ID: 2, Text: "Example post", UserID: 0},
	}
}

func New() (*subschema.Subschema, error) {
	return NewWithRecords(SampleRecords())
}

func NewWithRecords(records []Post) (*subschema.Subschema, error) {
	store := subschema.NewStore(records)

	resolvers := graph.FieldResolvers{}
	resolvers.Set("Query", "post", func(p graphql.ResolveParams) (any, error) {
		id, _ := p.Args["id"].(string)
		if post, ok := store.GetByKey(id); ok {
			return post, nil
		}
		return nil, nil
	})
	resolvers.Set("Query", "postsByIds", func(p graphql.ResolveParams) (any, error) {
		return store.ListByKeys(subschema.StringArgs(p.Args["ids"])), nil
	})
	resolvers.Set("Query", "allPosts", func(graphql.ResolveParams) (any, error) {
		return store.ListAll(), nil
	})

	return subschema.New(Name, SDL, resolvers)
}
