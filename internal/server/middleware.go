package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request ID back to the client.
	RequestIDHeader = "X-Request-ID"

	// FallbackMessage is the only detail a client sees when a handler panics.
	FallbackMessage = "Something went wrong."

	// RetryAfterSeconds is sent with 503 responses while the session is still loading.
	RetryAfterSeconds = 1
)

type requestIDKey struct{}

// RequestID returns the ID [RequestLogger] assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

// RequestLogger tags every request with a UUID and logs method, path, status and duration once it completes.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				"id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.bytes,
				"duration", time.Since(start),
			)
		})
	}
}

// Recover turns a panicking handler into a 500 with [FallbackMessage] and logs the details.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				logger.Error("handler panicked",
					"id", RequestID(r.Context()),
					"path", r.URL.Path,
					"panic", rv,
					"stack", string(debug.Stack()),
				)
				http.Error(w, FallbackMessage, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession gates protected pages on the session guard.
//
// While the session is loading the response is 503 with Retry-After and no body. Without a signed-in
// identity the client is sent to the login page with 303. Public pages always pass.
func RequireSession(guard *session.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Decide(models.Route(r.URL.Path))

			switch decision.Outcome {
			case session.Suspend:
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusServiceUnavailable)
			case session.Redirect:
				http.Redirect(w, r, decision.Target.String(), http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
