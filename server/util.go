package server

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// newUpgrader creates a WebSocket upgrader with origin checking from config
func (s *JobServer) newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin validates a request origin against the configured allowed origins
func (s *JobServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Allow requests with no origin header (CLI clients, the hotkey listener, tests)
	if origin == "" {
		return true
	}

	for _, allowed := range s.allowedOrigins {
		if originMatches(origin, allowed) {
			return true
		}
	}
	return false
}

// originMatches compares scheme and host exactly. An allowed origin without
// a port accepts any port; one with a port accepts only that port.
func originMatches(origin, allowed string) bool {
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return false
	}
	a, err := url.Parse(strings.TrimSuffix(allowed, "/"))
	if err != nil || a.Host == "" {
		return false
	}
	if !strings.EqualFold(o.Scheme, a.Scheme) || !strings.EqualFold(o.Hostname(), a.Hostname()) {
		return false
	}
	return a.Port() == "" || a.Port() == o.Port()
}

// listenAddr joins host and port for net.Listen
func listenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// isPortAvailable checks if a port is available for binding on host
func isPortAvailable(host string, port int) bool {
	listener, err := net.Listen("tcp", listenAddr(host, port))
	if err != nil {
		return false
	}
	_ = listener.Close() // best-effort check, the real bind reports its own error
	return true
}

// findAvailablePort tries the requested port, then the next ten
func findAvailablePort(host string, requestedPort int) (int, error) {
	for port := requestedPort; port <= requestedPort+10; port++ {
		if isPortAvailable(host, port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available ports found (tried %d-%d)", requestedPort, requestedPort+10)
}
