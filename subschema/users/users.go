// Package users is the User service: a subschema that owns user records.
package users

import (
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/n9te9/go-graphql-stitching-gateway/stitching/graph"
	"github.com/n9te9/go-graphql-stitching-gateway/subschema"
)

const Name = "users"

const SDL = `
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
`

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (u User) Key() string {
	return strconv.Itoa(u.ID)
}

// SampleRecords returns the users the service starts with.
func SampleRecords() []User {
	return []User{
		{ID: 0, Name: "Sarah"},
		{ID: 1, Name: "Alice"},
	}
}

func New() (*subschema.Subschema, error) {
	return NewWithRecords(SampleRecords())
}

func NewWithRecords(records []User) (*subschema.Subschema, error) {
	store := subschema.NewStore(records)

	resolvers := graph.FieldResolvers{}
	resolvers.Set("Query", "user", func(p graphql.ResolveParams) (any, error) {
		id, _ := p.Args["id"].(string)
		if user, ok := store.GetByKey(id); ok {
			return user, nil
		}
		return nil, nil
	})
	resolvers.Set("Query", "usersByIds", func(p graphql.ResolveParams) (any, error) {
		return store.ListByKeys(subschema.StringArgs(p.Args["ids"])), nil
	})
	resolvers.Set("Query", "allUsers", func(graphql.ResolveParams) (any, error) {
		return store.ListAll(), nil
	})

	return subschema.New(Name, SDL, resolvers)
}
