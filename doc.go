/*
Package webpool provides a small HTTP/1.x server built around a fixed-size
thread pool and an exact-match method/path router.

Every accepted TCP connection becomes one job on the pool. A worker reads the
request, dispatches it through the router, writes the response and closes the
connection. The number of workers is the only limit on concurrent request
handling; further connections wait in the pool queue.

# Quick Start

Basic usage example:

	package main

	import (
		"log"

		"github.com/searchktools/webpool/app"
		"github.com/searchktools/webpool/config"
		"github.com/searchktools/webpool/core/http"
	)

	func main() {
		cfg := config.New()
		application, err := app.New(cfg)
		if err != nil {
			log.Fatal(err)
		}

		application.Router().GET("/hello", func(*http.Request) *http.Response {
			return http.OK().WithString("Hello, World!")
		})

		if err := application.Run(); err != nil {
			log.Fatal(err)
		}
	}

# Modules

  - app: Application lifecycle and graceful shutdown
  - api: Default endpoints (/, /sleep, /api/health, /api/users, /api/stats)
  - config: Flags, JSON file and WEBPOOL_* environment configuration
  - core: Accept loop and per-connection handling
  - core/http: Request parser and response builder
  - core/router: Exact-match routing with 404/405 handling
  - core/middleware: Recovery, logging, request IDs, metrics, rate limiting
  - core/pools: Thread pool and byte buffer pool
  - core/codec: JSON and protobuf payload encoding
  - core/observability: Per-route request metrics

Not supported: HTTP/2, TLS, chunked transfer encoding, keep-alive, path
parameters and query strings.
*/
package webpool
