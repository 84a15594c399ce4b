package router

import (
	"log"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/searchktools/webpool/core/http"
)

// Handler turns a request into a response
type Handler interface {
	Serve(req *http.Request) *http.Response
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(req *http.Request) *http.Response

func (f HandlerFunc) Serve(req *http.Request) *http.Response {
	return f(req)
}

// Middleware decorates a Handler
type Middleware func(next Handler) Handler

// Route describes one registered route
type Route struct {
	Method http.Method
	Path   string
}

type routeKey struct {
	method http.Method
	path   string
}

// Patterns reported by Pattern for requests that match no route
const (
	PatternNotFound         = "NOT_FOUND"
	PatternMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

const (
	notFoundPage         = "<h1>404 - Page Not Found</h1>"
	methodNotAllowedPage = "<h1>405 - Method Not Allowed</h1>"
	internalErrorPage    = "<h1>500 - Internal Server Error</h1>"
)

// Router maps exact (method, path) pairs to handlers. Paths are compared
// byte for byte: no prefixes, no parameters, no normalization. Registration
// may happen while requests are being dispatched.
type Router struct {
	mu         sync.RWMutex
	routes     map[routeKey]Handler
	paths      map[string]struct{}
	notFound   Handler
	middleware []Middleware
}

// New creates an empty router
func New() *Router {
	return &Router{
		routes: make(map[routeKey]Handler, 16),
		paths:  make(map[string]struct{}, 16),
		notFound: HandlerFunc(func(*http.Request) *http.Response {
			return http.NotFound().WithString(notFoundPage)
		}),
	}
}

// Register adds a route. Registering the same method and path again replaces
// the previous handler.
func (r *Router) Register(method http.Method, path string, h Handler) *Router {
	if method == http.MethodUnsupported {
		panic("router: cannot register an unsupported method")
	}
	if !strings.HasPrefix(path, "/") {
		panic("router: path must begin with '/'")
	}
	if h == nil {
		panic("router: nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[routeKey{method: method, path: path}] = h
	r.paths[path] = struct{}{}
	return r
}

// GET registers a GET route
func (r *Router) GET(path string, h HandlerFunc) *Router {
	return r.Register(http.MethodGet, path, h)
}

// POST registers a POST route
func (r *Router) POST(path string, h HandlerFunc) *Router {
	return r.Register(http.MethodPost, path, h)
}

// PUT registers a PUT route
func (r *Router) PUT(path string, h HandlerFunc) *Router {
	return r.Register(http.MethodPut, path, h)
}

// DELETE registers a DELETE route
func (r *Router) DELETE(path string, h HandlerFunc) *Router {
	return r.Register(http.MethodDelete, path, h)
}

// NotFound replaces the designated not-found handler
func (r *Router) NotFound(h Handler) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notFound = h
	return r
}

// Use appends middleware. The first one added is the outermost.
func (r *Router) Use(mw ...Middleware) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
	return r
}

// Dispatch runs the handler registered for the request's method and path.
// A miss yields the not-found response, or 405 when an unsupported method
// targets a known path. A handler that panics or returns nil yields 500.
func (r *Router) Dispatch(req *http.Request) (resp *http.Response) {
	h := r.handler(req)

	defer func() {
		if v := recover(); v != nil {
			log.Printf("[router] %s %s: handler panicked: %v\n%s", req.RawMethod, req.Path, v, debug.Stack())
			resp = http.InternalServerError().WithString(internalErrorPage)
		}
	}()

	resp = h.Serve(req)
	if resp == nil {
		log.Printf("[router] %s %s: handler returned no response", req.RawMethod, req.Path)
		resp = http.InternalServerError().WithString(internalErrorPage)
	}
	return resp
}

// handler resolves the request to a handler wrapped in the middleware chain.
func (r *Router) handler(req *http.Request) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.routes[routeKey{method: req.Method, path: req.Path}]
	if !ok {
		_, known := r.paths[req.Path]
		if req.Method == http.MethodUnsupported && known {
			h = methodNotAllowed(r.allowedLocked(req.Path))
		} else {
			h = r.notFound
		}
	}

	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

// Pattern names the route req resolves to: "METHOD path" for a registered
// route, otherwise PatternNotFound or PatternMethodNotAllowed. The result is
// bounded by the number of registered routes.
func (r *Router) Pattern(req *http.Request) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.routes[routeKey{method: req.Method, path: req.Path}]; ok {
		return req.Method.String() + " " + req.Path
	}
	if _, known := r.paths[req.Path]; known && req.Method == http.MethodUnsupported {
		return PatternMethodNotAllowed
	}
	return PatternNotFound
}

func methodNotAllowed(allow string) Handler {
	return HandlerFunc(func(*http.Request) *http.Response {
		return http.MethodNotAllowed().
			WithHeader("Allow", allow).
			WithString(methodNotAllowedPage)
	})
}

// allowedLocked lists the methods registered for path. r.mu must be held.
func (r *Router) allowedLocked(path string) string {
	var methods []string
	for _, m := range []http.Method{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if _, ok := r.routes[routeKey{method: m, path: path}]; ok {
			methods = append(methods, m.String())
		}
	}
	return strings.Join(methods, ", ")
}

// Routes lists registered routes ordered by path, then method
func (r *Router) Routes() []Route {
	r.mu.RLock()
	routes := make([]Route, 0, len(r.routes))
	for k := range r.routes {
		routes = append(routes, Route{Method: k.method, Path: k.path})
	}
	r.mu.RUnlock()

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}
