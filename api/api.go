// Package api registers the default endpoints of the webpool binary.
package api

import (
	"log"
	"os"
	"time"

	"github.com/searchktools/webpool/core/http"
	"github.com/searchktools/webpool/core/router"
)

const (
	defaultWelcomePage = "<h1>Welcome to webpool!</h1>"
	sleepPage          = "<h1>Slow response completed!</h1>"
)

// Options parameterizes the default endpoints
type Options struct {
	ServerName string
	SleepDelay time.Duration
	// IndexFile is served on GET / when it can be read
	IndexFile string
	// Stats backs GET /api/stats; the route is skipped when nil
	Stats func() any
}

// Register adds the default endpoints to r and returns the user store
// behind /api/users.
func Register(r *router.Router, opts Options) *Users {
	users := NewUsers()

	r.GET("/", index(opts.IndexFile)).
		GET("/sleep", sleep(opts.SleepDelay)).
		GET("/api/health", health(opts.ServerName)).
		GET("/api/users", users.list).
		POST("/api/users", users.create).
		PUT("/api/users/1", users.update).
		DELETE("/api/users/1", users.remove)

	if opts.Stats != nil {
		r.GET("/api/stats", stats(opts.Stats))
	}
	return users
}

func index(file string) router.HandlerFunc {
	return func(*http.Request) *http.Response {
		if file != "" {
			if contents, err := os.ReadFile(file); err == nil {
				return http.OK().WithBody(contents)
			}
		}
		return http.OK().WithString(defaultWelcomePage)
	}
}

func sleep(delay time.Duration) router.HandlerFunc {
	return func(*http.Request) *http.Response {
		time.Sleep(delay)
		return http.OK().WithString(sleepPage)
	}
}

func health(server string) router.HandlerFunc {
	return func(*http.Request) *http.Response {
		return message(200, map[string]string{"status": "healthy", "server": server})
	}
}

func stats(collect func() any) router.HandlerFunc {
	return func(*http.Request) *http.Response {
		resp, err := http.JSONValue(200, collect())
		if err != nil {
			log.Printf("[api] encode stats: %v", err)
			return jsonError(500, "Internal Server Error")
		}
		return resp
	}
}
