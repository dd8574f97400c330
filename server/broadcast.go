package server

import (
	"time"

	"github.com/teranos/jobtrail/logger"
)

// registerClient adds a client unless the server is at MaxClients
func (s *JobServer) registerClient(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) >= MaxClients {
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", c.id,
			"max_clients", MaxClients)
		return false
	}
	s.clients[c] = true
	s.logger.Infow("Client connected",
		"client_id", c.id,
		"total_clients", len(s.clients))
	return true
}

// unregisterClient removes a client and closes its send channel
func (s *JobServer) unregisterClient(c *Client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	total := len(s.clients)
	s.mu.Unlock()

	if ok {
		c.close()
		s.logger.Infow("Client disconnected",
			"client_id", c.id,
			"total_clients", total)
	}
}

// broadcastMessage sends msg to every client. A client whose buffer is full
// is dropped rather than allowed to stall the others.
// Returns the number of clients that accepted the message.
func (s *JobServer) broadcastMessage(msg interface{}) int {
	sent := 0
	var slow []*Client

	// Sends happen under the read lock so unregisterClient cannot close a channel mid-send
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- msg:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		s.broadcastDrops.Add(1)
		s.logger.Warnw("Client send buffer full, removing client",
			"client_id", c.id,
			"total_drops", s.broadcastDrops.Load())
		s.unregisterClient(c)
		c.conn.Close()
	}
	return sent
}

// storeChangedMessage reads the current total for a change notification
func (s *JobServer) storeChangedMessage() (StoreChangedMessage, error) {
	records, err := s.store.List(s.ctx)
	if err != nil {
		return StoreChangedMessage{}, err
	}
	return StoreChangedMessage{
		Type:      "store_changed",
		Total:     len(records),
		Timestamp: time.Now().Unix(),
	}, nil
}

// handleStoreChanged is the store watch callback
func (s *JobServer) handleStoreChanged() {
	msg, err := s.storeChangedMessage()
	if err != nil {
		s.logger.Warnw("Failed to read store after change", logger.FieldError, err.Error())
		return
	}
	sent := s.broadcastMessage(msg)
	s.logger.Debugw("Broadcast store change",
		logger.FieldCount, msg.Total,
		"clients", sent)
}
