package session

import (
	"encoding/json"
	"log/slog"
)

// Broadcast delivers msg to every participant except exclude, which may be nil
func (s *Session) Broadcast(msg any, exclude Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(msg, exclude)
}

// broadcastLocked encodes msg once and hands it to each participant.
// Delivery is best-effort: a connection that refuses the payload is skipped.
func (s *Session) broadcastLocked(msg any, exclude Conn) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode broadcast", slog.Any("error", err))
		return
	}

	excludeID := ""
	if exclude != nil {
		excludeID = exclude.ID()
	}

	for _, p := range s.participants {
		if p.conn.ID() == excludeID {
			continue
		}
		if !p.conn.Send(payload) {
			s.logger.Debug("broadcast skipped connection", slog.String("conn_id", p.conn.ID()))
		}
	}
}

func (s *Session) sendLocked(conn Conn, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode message", slog.Any("error", err))
		return
	}
	if !conn.Send(payload) {
		s.logger.Debug("send skipped connection", slog.String("conn_id", conn.ID()))
	}
}
