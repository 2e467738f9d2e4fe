package graph

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

var errUnsupportedField = errors.New("unsupported field")

// executableSchema dispatches root fields to the resolvers and projects their
// results onto the requested selection sets. Parsing and validation happen in
// the gqlgen executor before Exec is called.
type executableSchema struct {
	// Provides Complexity. No complexity limit is installed, so it is never
	// called.
	graphql.ExecutableSchema

	resolver *Resolver
}

// NewExecutableSchema returns the schema served by NewHandler.
func NewExecutableSchema(r *Resolver) graphql.ExecutableSchema {
	return &executableSchema{resolver: r}
}

func (e *executableSchema) Schema() *ast.Schema { return parsedSchema }

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	switch opCtx.Operation.Operation {
	case ast.Query:
		return graphql.OneShot(e.execRoot(ctx, opCtx, "Query", e.resolveQuery))
	case ast.Mutation:
		return graphql.OneShot(e.execRoot(ctx, opCtx, "Mutation", e.resolveMutation))
	case ast.Subscription:
		return e.execSubscription(ctx, opCtx)
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}
}

type rootResolver func(ctx context.Context, field graphql.CollectedField, args map[string]any) (any, error)

func (e *executableSchema) resolveQuery(ctx context.Context, field graphql.CollectedField, args map[string]any) (any, error) {
	q := e.resolver.Query()
	switch field.Name {
	case "matches":
		return q.Matches(ctx)
	case "likesReceived":
		return q.LikesReceived(ctx)
	case "stats":
		return q.Stats(ctx)
	case "compatibility":
		return q.Compatibility(ctx, argString(args, "userA"), argString(args, "userB"))
	}
	return nil, fmt.Errorf("%w: Query.%s", errUnsupportedField, field.Name)
}

func (e *executableSchema) resolveMutation(ctx context.Context, field graphql.CollectedField, args map[string]any) (any, error) {
	m := e.resolver.Mutation()
	switch field.Name {
	case "recordAction":
		return m.RecordAction(ctx, argString(args, "targetUserId"), argString(args, "kind"))
	case "unmatch":
		return m.Unmatch(ctx, argString(args, "userId"))
	}
	return nil, fmt.Errorf("%w: Mutation.%s", errUnsupportedField, field.Name)
}

// execRoot resolves the root fields in order. Mutations therefore run
// serially. A failed non-null root field nulls the whole data object.
func (e *executableSchema) execRoot(ctx context.Context, opCtx *graphql.OperationContext, typeName string, resolve rootResolver) *graphql.Response {
	var (
		data   object
		errs   gqlerror.List
		nulled bool
	)
	for _, f := range graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{typeName}) {
		key := responseKey(f)
		if f.Name == "__typename" {
			data = append(data, member{key, typeName})
			continue
		}

		v, err := resolve(ctx, f, f.ArgumentMap(opCtx.Variables))
		if err == nil {
			v, err = project(opCtx, v, f.Selections, namedType(f))
		}
		if err != nil {
			errs = append(errs, e.toError(ctx, err, ast.Path{ast.PathName(key)}))
			data = append(data, member{key, nil})
			if f.Definition != nil && f.Definition.Type.NonNull {
				nulled = true
			}
			continue
		}
		data = append(data, member{key, v})
	}

	resp := &graphql.Response{Errors: errs}
	if nulled {
		resp.Data = []byte("null")
		return resp
	}
	b, err := json.Marshal(data)
	if err != nil {
		return graphql.ErrorResponse(ctx, "encode response: %v", err)
	}
	resp.Data = b
	return resp
}

// execSubscription starts the single subscribed stream and returns a handler
// that yields one response per event, or nil once the stream ends.
func (e *executableSchema) execSubscription(ctx context.Context, opCtx *graphql.OperationContext) graphql.ResponseHandler {
	fields := graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{"Subscription"})
	if len(fields) != 1 {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "a subscription must select exactly one field"))
	}
	f := fields[0]
	key := responseKey(f)
	path := ast.Path{ast.PathName(key)}

	var (
		stream <-chan *MatchNotice
		err    error
	)
	switch f.Name {
	case "matchCreated":
		stream, err = e.resolver.Subscription().MatchCreated(ctx)
	default:
		err = fmt.Errorf("%w: Subscription.%s", errUnsupportedField, f.Name)
	}
	if err != nil {
		return graphql.OneShot(&graphql.Response{
			Data:   []byte("null"),
			Errors: gqlerror.List{e.toError(ctx, err, path)},
		})
	}

	return func(ctx context.Context) *graphql.Response {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-stream:
			if !ok {
				return nil
			}
			v, err := project(opCtx, n, f.Selections, namedType(f))
			if err != nil {
				return &graphql.Response{Data: []byte("null"), Errors: gqlerror.List{e.toError(ctx, err, path)}}
			}
			b, err := json.Marshal(object{{key, v}})
			if err != nil {
				return graphql.ErrorResponse(ctx, "encode response: %v", err)
			}
			return &graphql.Response{Data: b}
		}
	}
}

// toError turns a resolver error into a GraphQL error carrying the same code
// the REST API reports. Unknown errors are logged and hidden.
func (e *executableSchema) toError(ctx context.Context, err error, path ast.Path) *gqlerror.Error {
	code := matching.Code(err)
	switch {
	case code != "":
	case errors.Is(err, errUnauthenticated):
		code = "unauthorized"
	case errors.Is(err, errUnsupportedField):
		code = "unsupported_field"
	default:
		logging.Ctx(ctx).Error().Err(err).Str("path", path.String()).Msg("unhandled resolver error")
		return &gqlerror.Error{
			Message:    "internal error",
			Path:       path,
			Extensions: map[string]any{"code": "internal_error"},
		}
	}
	return &gqlerror.Error{
		Err:        err,
		Message:    err.Error(),
		Path:       path,
		Extensions: map[string]any{"code": code},
	}
}

// project round-trips v through JSON and keeps only the selected fields, in
// selection order. Model JSON names match the schema field names.
func project(opCtx *graphql.OperationContext, v any, sel ast.SelectionSet, typeName string) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return selectFields(opCtx, generic, sel, typeName), nil
}

func selectFields(opCtx *graphql.OperationContext, v any, sel ast.SelectionSet, typeName string) any {
	if len(sel) == 0 || v == nil {
		return v
	}
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = selectFields(opCtx, item, sel, typeName)
		}
		return out
	case map[string]any:
		obj := make(object, 0, len(sel))
		for _, f := range graphql.CollectFields(opCtx, sel, []string{typeName}) {
			key := responseKey(f)
			if f.Name == "__typename" {
				obj = append(obj, member{key, typeName})
				continue
			}
			obj = append(obj, member{key, selectFields(opCtx, val[f.Name], f.Selections, namedType(f))})
		}
		return obj
	}
	return v
}

func responseKey(f graphql.CollectedField) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func namedType(f graphql.CollectedField) string {
	if f.Definition == nil {
		return ""
	}
	return f.Definition.Type.Name()
}

// argString reads a string-like argument. ID variables may arrive as numbers.
func argString(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// object is a JSON object that keeps its key order.
type object []member

type member struct {
	key   string
	value any
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
