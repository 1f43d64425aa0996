// Package httpmiddleware contains net/http middlewares shared by the API
// server: recovery, CORS, rate limiting, request ids, logging and
// OpenTelemetry instrumentation.
package httpmiddleware

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
)

// Middleware is a net/http middleware.
type Middleware = func(http.Handler) http.Handler

// Wrap handler using given middlewares. The first middleware is the
// outermost one.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Route describes the registered pattern a request resolves to.
type Route struct {
	Method  string
	Pattern string
}

// Name returns the route as "METHOD /path/{param}".
func (r Route) Name() string {
	if r.Method == "" {
		return r.Pattern
	}
	return r.Method + " " + r.Pattern
}

// RouteFinder resolves the route of a request without serving it.
type RouteFinder func(r *http.Request) (Route, bool)

// MakeRouteFinder returns a RouteFinder backed by mux patterns.
func MakeRouteFinder(mux *http.ServeMux) RouteFinder {
	return func(r *http.Request) (Route, bool) {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			return Route{}, false
		}
		route := Route{Pattern: pattern}
		if method, path, ok := strings.Cut(pattern, " "); ok {
			route.Method = method
			route.Pattern = path
		}
		return route, true
	}
}

// writeError writes the {"code","message"} body used by every API error.
func writeError(w http.ResponseWriter, code int, message string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// statusWriter records the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
