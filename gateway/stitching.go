package gateway

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/delegate"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema/posts"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema/users"
)

// catalog lists the subschemas the gateway can run in-process.
var catalog = map[string]func() (*subschema.Subschema, error){
	posts.Name: posts.New,
	users.Name: users.New,
}

// NewSubschema builds a subschema from the in-process catalog.
func NewSubschema(name string) (*subschema.Subschema, error) {
	newSubschema, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown subschema %q", name)
	}
	return newSubschema()
}

// postUserTypeDefs links every Post to its author.
const postUserTypeDefs = `
extend type Post {
  user: User
}
`

func postUserResolvers() map[string]map[string]stitching.FieldResolver {
	return map[string]map[string]stitching.FieldResolver{
		"Post": {
			"user": {
				SelectionSet: "{ userId }",
				Resolve:      resolvePostUser,
			},
		},
	}
}

// resolvePostUser batches every Post.user of one execution pass into a
// single usersByIds call.
func resolvePostUser(p graphql.ResolveParams, d *delegate.Delegator) (any, error) {
	post, ok := p.Source.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected Post value %T", p.Source)
	}
	userID := post["userId"]
	if userID == nil {
		return nil, nil
	}

	return d.BatchDelegate(p, delegate.BatchOptions{
		Subschema: users.Name,
		FieldName: "usersByIds",
		Key:       fmt.Sprint(userID),
		ArgsFromKeys: func(keys []string) map[string]any {
			return map[string]any{"ids": keys}
		},
		Path:              []string{"items"},
		ValuesFromResults: connectionItems,
	})
}

// connectionItems returns the items of a connection, one per key.
func connectionItems(results any, keys []string) ([]any, error) {
	items, ok := results.([]any)
	if !ok {
		return nil, fmt.Errorf("usersByIds returned %T, want a list of users", results)
	}
	return items, nil
}
