// Package server provides HTTP routing, middleware and the server lifecycle for the web dashboard.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] implements it on
// gorilla/mux with per-route method matching.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// # Middleware
//
//   - [RequestLogger] assigns each request a UUID and logs it when it completes
//   - [Recover] is the catch-all: a panic becomes a 500 with a generic message and a logged stack
//   - [RequireSession] applies the session guard: 503 while loading, 303 to /login when signed out
//
// # Lifecycle
//
// [Run] serves until its context ends and then shuts down gracefully. The serve command runs it next to
// the session store in one errgroup.
package server
