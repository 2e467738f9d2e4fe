package graph

import (
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/gorilla/websocket"
)

const keepAlivePingInterval = 10 * time.Second

// NewHandler serves the schema over POST, GET and websocket subscriptions.
// Authentication is left to the surrounding middleware. A nil checkOrigin
// allows every origin.
func NewHandler(r *Resolver, checkOrigin func(*http.Request) bool) http.Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	srv := handler.New(NewExecutableSchema(r))
	srv.AddTransport(transport.Websocket{
		KeepAlivePingInterval: keepAlivePingInterval,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	})
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	return srv
}
