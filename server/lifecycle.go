package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
)

const shutdownTimeout = 5 * time.Second

// Start listens on the bind address at port, or the next free port after it,
// and serves until Stop
func (s *JobServer) Start(port int) error {
	actualPort, err := findAvailablePort(s.bindAddress, port)
	if err != nil {
		return errors.Wrap(err, "failed to find available port")
	}
	if actualPort != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort)
	}

	addr := listenAddr(s.bindAddress, actualPort)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://%s", addr),
		logger.FieldFile, s.store.Path())

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "server on %s failed", addr)
	}
	return nil
}

// Stop gracefully shuts down the server and cleans up resources
func (s *JobServer) Stop() error {
	s.logger.Infow("Initiating server shutdown")

	var shutdownErr error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr = s.httpServer.Shutdown(ctx)
	}

	// Close client connections so their pumps exit
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
		delete(s.clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
		c.conn.Close()
	}

	// Stops the store watch
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("Server stopped cleanly")
	case <-time.After(shutdownTimeout):
		s.logger.Warnw("Server goroutines did not exit in time")
	}

	if shutdownErr != nil {
		return errors.Wrap(shutdownErr, "server shutdown")
	}
	return nil
}
