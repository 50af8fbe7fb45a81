package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

var _ Router = (*BasicRouter)(nil)

// BasicRouter implements [Router] on top of a [mux.Router].
type BasicRouter struct {
	mux         *mux.Router
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
//
// Unknown paths are answered by the router's NotFound handler, which also runs through the middleware stack.
func NewBasicRouter() *BasicRouter {
	r := &BasicRouter{
		mux:         mux.NewRouter(),
		middlewares: []Middleware{},
	}
	r.mux.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.Apply(http.NotFoundHandler()).ServeHTTP(w, req)
	})
	r.mux.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.Apply(http.HandlerFunc(methodNotAllowed)).ServeHTTP(w, req)
	})
	return r
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// Use adds [Middleware] to the router's stack, applied in the order it's added.
// Only handlers registered afterwards are wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method and path. The handler is wrapped with all registered middleware.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Handle(path, r.Apply(handler)).Methods(method)
}

// HandleFunc is [BasicRouter.Handle] for plain functions.
func (r *BasicRouter) HandleFunc(method, path string, fn http.HandlerFunc) {
	r.Handle(method, path, fn)
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first), so the first added runs outermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
