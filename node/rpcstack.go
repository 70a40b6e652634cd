// Copyright 2020 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/cors"
)

// httpConfig is the JSON-RPC/HTTP configuration.
type httpConfig struct {
	CorsAllowedOrigins []string
	Vhosts             []string
	WSOrigins          []string // websocket is served on the same port if set
	jwtSecret          []byte   // optional JWT secret
}

// httpServer serves one rpc.Server over HTTP and optionally websocket.
type httpServer struct {
	log      log.Logger
	timeouts rpc.HTTPTimeouts
	config   httpConfig

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener // non-nil when server is running
	endpoint string
}

func newHTTPServer(log log.Logger, timeouts rpc.HTTPTimeouts) *httpServer {
	checkTimeouts(log, &timeouts)
	return &httpServer{log: log, timeouts: timeouts}
}

// start opens the listener and serves the handler stack wrapping srv.
func (h *httpServer) start(endpoint string, config httpConfig, srv *rpc.Server) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener != nil {
		return nil // already running
	}
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	h.config = config
	h.listener = listener
	h.endpoint = listener.Addr().String()
	h.server = &http.Server{
		Handler:           h.handler(srv),
		ReadTimeout:       h.timeouts.ReadTimeout,
		ReadHeaderTimeout: h.timeouts.ReadHeaderTimeout,
		WriteTimeout:      h.timeouts.WriteTimeout,
		IdleTimeout:       h.timeouts.IdleTimeout,
	}
	go h.server.Serve(listener)

	h.log.Info("HTTP server started", "endpoint", h.endpoint, "cors", strings.Join(config.CorsAllowedOrigins, ","), "vhosts", strings.Join(config.Vhosts, ","), "ws", len(config.WSOrigins) > 0, "auth", len(config.jwtSecret) > 0)
	return nil
}

// handler assembles the middleware stack: virtual host check, CORS and
// optional JWT authentication in front of the RPC handlers.
func (h *httpServer) handler(srv *rpc.Server) http.Handler {
	var (
		httpHandler http.Handler = newCorsHandler(srv, h.config.CorsAllowedOrigins)
		wsHandler   http.Handler
	)
	httpHandler = newVHostHandler(h.config.Vhosts, httpHandler)
	if len(h.config.WSOrigins) > 0 {
		wsHandler = srv.WebsocketHandler(h.config.WSOrigins)
	}
	if len(h.config.jwtSecret) > 0 {
		httpHandler = newJWTHandler(h.config.jwtSecret, httpHandler)
		if wsHandler != nil {
			wsHandler = newJWTHandler(h.config.jwtSecret, wsHandler)
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wsHandler != nil && isWebsocket(r) {
			wsHandler.ServeHTTP(w, r)
			return
		}
		httpHandler.ServeHTTP(w, r)
	})
}

// stop shuts down the HTTP server.
func (h *httpServer) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return // not running
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil && err == ctx.Err() {
		h.log.Warn("HTTP server graceful shutdown timed out")
		h.server.Close()
	}
	h.listener.Close()
	h.log.Info("HTTP server stopped", "endpoint", h.endpoint)

	h.server, h.listener = nil, nil
}

// url returns the base URL of the running server, or "" if not running.
func (h *httpServer) url() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s", h.endpoint)
}

// isWebsocket checks the header of an http request for a websocket upgrade request.
func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

func newCorsHandler(srv http.Handler, allowedOrigins []string) http.Handler {
	// disable CORS support if user has not specified a custom CORS configuration
	if len(allowedOrigins) == 0 {
		return srv
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
	return c.Handler(srv)
}

// virtualHostHandler is a handler which validates the Host-header of incoming requests.
// Using virtual hosts can help prevent DNS rebinding attacks, where a 'random' domain name points to
// the service ip address (but without CORS headers). By verifying the targeted virtual host, we can
// ensure that it's a destination that the node operator has defined.
type virtualHostHandler struct {
	vhosts map[string]struct{}
	next   http.Handler
}

func newVHostHandler(vhosts []string, next http.Handler) http.Handler {
	vhostMap := make(map[string]struct{})
	for _, allowedHost := range vhosts {
		vhostMap[strings.ToLower(allowedHost)] = struct{}{}
	}
	return &virtualHostHandler{vhostMap, next}
}

// ServeHTTP serves JSON-RPC requests over HTTP, implements http.Handler
func (h *virtualHostHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// if r.Host is not set, we can continue serving since a browser would set the Host header
	if r.Host == "" {
		h.next.ServeHTTP(w, r)
		return
	}
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		// Either invalid (too many colons) or no port specified
		host = r.Host
	}
	if ipAddr := net.ParseIP(host); ipAddr != nil {
		// It's an IP address, we can serve that
		h.next.ServeHTTP(w, r)
		return
	}
	// Not an IP address, but a hostname. Need to validate
	if _, exist := h.vhosts["*"]; exist {
		h.next.ServeHTTP(w, r)
		return
	}
	if _, exist := h.vhosts[strings.ToLower(host)]; exist {
		h.next.ServeHTTP(w, r)
		return
	}
	http.Error(w, "invalid host specified", http.StatusForbidden)
}

// checkTimeouts ensures that timeout values are meaningful.
func checkTimeouts(log log.Logger, timeouts *rpc.HTTPTimeouts) {
	if timeouts.ReadTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP read timeout", "provided", timeouts.ReadTimeout, "updated", rpc.DefaultHTTPTimeouts.ReadTimeout)
		timeouts.ReadTimeout = rpc.DefaultHTTPTimeouts.ReadTimeout
	}
	if timeouts.ReadHeaderTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP read header timeout", "provided", timeouts.ReadHeaderTimeout, "updated", rpc.DefaultHTTPTimeouts.ReadHeaderTimeout)
		timeouts.ReadHeaderTimeout = rpc.DefaultHTTPTimeouts.ReadHeaderTimeout
	}
	if timeouts.WriteTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP write timeout", "provided", timeouts.WriteTimeout, "updated", rpc.DefaultHTTPTimeouts.WriteTimeout)
		timeouts.WriteTimeout = rpc.DefaultHTTPTimeouts.WriteTimeout
	}
	if timeouts.IdleTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP idle timeout", "provided", timeouts.IdleTimeout, "updated", rpc.DefaultHTTPTimeouts.IdleTimeout)
		timeouts.IdleTimeout = rpc.DefaultHTTPTimeouts.IdleTimeout
	}
}
