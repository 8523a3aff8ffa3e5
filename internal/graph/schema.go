// Package graph exposes the services through a GraphQL schema with queries,
// mutations and subscriptions backed by the event bus.
package graph

import (
	"context"

	"github.com/graphql-go/graphql"

	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/service"
)

// Resolver holds the dependencies of every resolver in the schema.
type Resolver struct {
	Todos  *service.TodoService
	Tags   *service.TagService
	Users  *service.UserService
	Events eventbus.Subscriber
}

var priorityEnum = graphql.NewEnum(graphql.EnumConfig{
	Name:        "Priority",
	Description: "Urgency of a todo",
	Values: graphql.EnumValueConfigMap{
		"LOW":    &graphql.EnumValueConfig{Value: dom.PriorityLow},
		"MEDIUM": &graphql.EnumValueConfig{Value: dom.PriorityMedium},
		"HIGH":   &graphql.EnumValueConfig{Value: dom.PriorityHigh},
	},
})

var (
	createTodoInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateTodoInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"title":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"description": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"completed":   &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
			"priority":    &graphql.InputObjectFieldConfig{Type: priorityEnum, DefaultValue: dom.PriorityMedium},
			"startDate":   &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"dueDate":     &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"userId":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"tagIds":      &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
		},
	})
	updateTodoInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UpdateTodoInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"title":       &graphql.InputObjectFieldConfig{Type: graphql.String},
			"description": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"completed":   &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
			"priority":    &graphql.InputObjectFieldConfig{Type: priorityEnum},
			"startDate":   &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"dueDate":     &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"userId":      &graphql.InputObjectFieldConfig{Type: graphql.String},
			"tagIds":      &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
		},
	})
	createTagInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateTagInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"color": &graphql.InputObjectFieldConfig{Type: graphql.String, Description: "Hex color like #FF0000"},
		},
	})
	updateTagInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UpdateTagInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":  &graphql.InputObjectFieldConfig{Type: graphql.String},
			"color": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
	createUserInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateUserInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"email": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"name":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
	updateUserInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UpdateUserInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"email": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"name":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
)

// NewSchema builds the schema around r.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	var todoType, tagType, userType *graphql.Object

	todoType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Todo",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"title":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"description": &graphql.Field{Type: graphql.String},
				"completed":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
				"priority":    &graphql.Field{Type: graphql.NewNonNull(priorityEnum)},
				"startDate":   &graphql.Field{Type: graphql.DateTime},
				"dueDate":     &graphql.Field{Type: graphql.DateTime},
				"userId":      &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"tagIds":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.ID)))},
				"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"updatedAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"user": &graphql.Field{
					Type: graphql.NewNonNull(userType),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return r.Users.FindOne(p.Context, p.Source.(dom.Todo).UserID)
					},
				},
				"tags": &graphql.Field{
					Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tagType))),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return r.Tags.FindByTodo(p.Context, p.Source.(dom.Todo).ID)
					},
				},
			}
		}),
	})

	tagType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Tag",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"color":     &graphql.Field{Type: graphql.String},
				"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"updatedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"todos": &graphql.Field{
					Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(todoType))),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return r.Todos.FindByTag(p.Context, p.Source.(dom.Tag).ID)
					},
				},
			}
		}),
	})

	userType = graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"email":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"name":      &graphql.Field{Type: graphql.String},
				"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"updatedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
				"todos": &graphql.Field{
					Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(todoType))),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return r.Todos.FindByUser(p.Context, p.Source.(dom.User).ID)
					},
				},
			}
		}),
	})

	idArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"todos": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(todoType))),
				Description: "Get all todos",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return r.Todos.FindAll(p.Context)
				},
			},
			"todo": &graphql.Field{
				Type:        todoType,
				Description: "Get a todo by ID",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return nilOnError(r.Todos.FindOne(p.Context, p.Args["id"].(string)))
				},
			},
			"tags": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tagType))),
				Description: "Get all tags",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return r.Tags.FindAll(p.Context)
				},
			},
			"tag": &graphql.Field{
				Type:        tagType,
				Description: "Get a tag by ID",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return nilOnError(r.Tags.FindOne(p.Context, p.Args["id"].(string)))
				},
			},
			"users": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(userType))),
				Description: "Get all users",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return r.Users.FindAll(p.Context)
				},
			},
			"user": &graphql.Field{
				Type:        userType,
				Description: "Get a user by ID",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return nilOnError(r.Users.FindOne(p.Context, p.Args["id"].(string)))
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createTodo": &graphql.Field{
				Type:        todoType,
				Description: "Create a new todo",
				Args: graphql.FieldConfigArgument{
					"createTodoInput": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createTodoInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in := inputArg(p.Args, "createTodoInput")
					return nilOnError(r.Todos.Create(p.Context, service.CreateTodoInput{
						Title:       stringField(in, "title"),
						Description: optString(in, "description"),
						Completed:   optBool(in, "completed"),
						Priority:    optPriority(in, "priority"),
						StartDate:   optTime(in, "startDate"),
						DueDate:     optTime(in, "dueDate"),
						UserID:      stringField(in, "userId"),
						TagIDs:      stringList(in, "tagIds"),
					}))
				},
			},
			"updateTodo": &graphql.Field{
				Type:        todoType,
				Description: "Update a todo by ID",
				Args: graphql.FieldConfigArgument{
					"id":              &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"updateTodoInput": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateTodoInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in := inputArg(p.Args, "updateTodoInput")
					return nilOnError(r.Todos.Update(p.Context, p.Args["id"].(string), service.UpdateTodoInput{
						Title:       optString(in, "title"),
						Description: optString(in, "description"),
						Completed:   optBool(in, "completed"),
						Priority:    optPriority(in, "priority"),
						StartDate:   optTime(in, "startDate"),
						DueDate:     optTime(in, "dueDate"),
						UserID:      optString(in, "userId"),
						TagIDs:      stringList(in, "tagIds"),
					}))
				},
			},
			"deleteTodo": &graphql.Field{
				Type:        todoType,
				Description: "Delete a todo by ID and return it",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return nilOnError(r.Todos.Remove(p.Context, p.Args["id"].(string)))
				},
			},
			"createTag": &graphql.Field{
				Type:        tagType,
				Description: "Create a new tag with the given name and optional color",
				Args: graphql.FieldConfigArgument{
					"createTagInput": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createTagInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in := inputArg(p.Args, "createTagInput")
					return nilOnError(r.Tags.Create(p.Context, service.CreateTagInput{
						Name:  stringField(in, "name"),
						Color: optString(in, "color"),
					}))
				},
			},
			"updateTag": &graphql.Field{
				Type:        tagType,
				Description: "Update an existing tag by ID",
				Args: graphql.FieldConfigArgument{
					"id":             &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"updateTagInput": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateTagInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in := inputArg(p.Args, "updateTagInput")
					return nilOnError(r.Tags.Update(p.Context, p.Args["id"].(string), service.UpdateTagInput{
						Name:  optString(in, "name"),
						Color: optString(in, "color"),
					}))
				},
			},
			"removeTag": &graphql.Field{
				Type:        tagType,
				Description: "Remove a tag by ID",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return nilOnError(r.Tags.Remove(p.Context, p.Args["id"].(string)))
				},
			},
			"createUser": &graphql.Field{
				Type:        userType,
				Description: "Create a new user",
				Args: graphql.FieldConfigArgument{
					"createUserInput": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createUserInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in := inputArg(p.Args, "createUserInput")
					return nilOnError(r.Users.Create(p.Context, service.CreateUserInput{
						Email: stringField(in, "email"),
						Name:  optString(in, "name"),
					}))
				},
			},
			"updateUser": &graphql.Field{
				Type:        userType,
				Description: "Update a user by ID",
				Args: graphql.FieldConfigArgument{
					"id":              &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"updateUserInput": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateUserInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in := inputArg(p.Args, "updateUserInput")
					return nilOnError(r.Users.Update(p.Context, p.Args["id"].(string), service.UpdateUserInput{
						Email: optString(in, "email"),
						Name:  optString(in, "name"),
					}))
				},
			},
			"deleteUser": &graphql.Field{
				Type:        userType,
				Description: "Delete a user by ID. Fails while the user still owns todos",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return nilOnError(r.Users.Remove(p.Context, p.Args["id"].(string)))
				},
			},
		},
	})

	subscription := graphql.NewObject(graphql.ObjectConfig{
		Name: "Subscription",
		Fields: graphql.Fields{
			"todoAdded":   r.stream(todoType, eventbus.TodosAdded, "A new todo was added"),
			"todoUpdated": r.stream(todoType, eventbus.TodosUpdated, "A todo was updated"),
			"todoDeleted": r.stream(todoType, eventbus.TodosDeleted, "A todo was deleted"),
			"tagCreated":  r.stream(tagType, eventbus.TagsAdded, "A new tag was created"),
			"tagUpdated":  r.stream(tagType, eventbus.TagsUpdated, "A tag was updated"),
			"tagRemoved":  r.stream(tagType, eventbus.TagsDeleted, "A tag was removed"),
			"userCreated": r.stream(userType, eventbus.UsersAdded, "A new user was created"),
			"userUpdated": r.stream(userType, eventbus.UsersUpdated, "A user was updated"),
			"userRemoved": r.stream(userType, eventbus.UsersDeleted, "A user was removed"),
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:        query,
		Mutation:     mutation,
		Subscription: subscription,
	})
}

// stream returns a subscription field that forwards every payload published
// under event to the subscriber until its context ends.
func (r *Resolver) stream(typ graphql.Output, event, description string) *graphql.Field {
	return &graphql.Field{
		Type:        graphql.NewNonNull(typ),
		Description: description,
		Subscribe: func(p graphql.ResolveParams) (interface{}, error) {
			return forward(p.Context, r.Events.Subscribe(p.Context, event)), nil
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			return p.Source, nil
		},
	}
}

func forward(ctx context.Context, events <-chan eventbus.Event) chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		for ev := range events {
			select {
			case out <- ev.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
