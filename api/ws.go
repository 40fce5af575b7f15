package api

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"notify-lab/domain/chat"
	apperrors "notify-lab/errors"
)

// wsOutlet pushes chat messages down one WebSocket. Writes are
// serialized; gorilla allows at most one concurrent writer.
type wsOutlet struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed atomic.Bool
}

func (o *wsOutlet) Send(m chat.Message) error {
	if o.closed.Load() {
		return apperrors.ErrOutletClosed
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.conn.WriteJSON(m); err != nil {
		o.closed.Store(true)
		return err
	}
	return nil
}

func (o *wsOutlet) Open() bool {
	return !o.closed.Load()
}

// handleChatSocket upgrades the connection and runs the read loop,
// feeding every frame to the dispatcher. Any read error (including a
// normal close) lands in the same Disconnect cleanup.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || !s.tokens.Validate(token) {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	outlet := &wsOutlet{conn: conn}
	session := chat.NewSession(uuid.NewString(), outlet)
	s.log.Info("chat socket connected", "session_id", session.ID)

	defer func() {
		outlet.closed.Store(true)
		s.dispatcher.Disconnect(session)
		_ = conn.Close()
		s.log.Info("chat socket closed", "session_id", session.ID)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatcher.HandleRaw(session, payload)
	}
}
