package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"notify-lab/domain/event"
	apperrors "notify-lab/errors"
)

// sseOutlet pushes events down one Server-Sent-Events response. The
// first failed write closes the outlet for good; the registry prunes it
// and the handler goroutine is released through the done channel.
type sseOutlet struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	closed  bool
}

func newSSEOutlet(w http.ResponseWriter, flusher http.Flusher) *sseOutlet {
	return &sseOutlet{w: w, flusher: flusher, done: make(chan struct{})}
}

func (o *sseOutlet) Send(e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return o.write(payload)
}

func (o *sseOutlet) write(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return apperrors.ErrOutletClosed
	}
	if _, err := fmt.Fprintf(o.w, "data: %s\n\n", payload); err != nil {
		o.closed = true
		close(o.done)
		return err
	}
	o.flusher.Flush()
	return nil
}

// Close makes the outlet refuse all further writes. The handler must
// call it before returning: the response writer is owned by net/http
// again after that, and a send that snapshotted the outlet from the
// registry may still be in flight.
func (o *sseOutlet) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.done)
}

// handleStream is the live push endpoint. The token travels as a query
// parameter because EventSource cannot set headers. The connection has
// a fixed maximum lifetime; completion, timeout and write errors all
// converge on the one deferred unregister.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || !s.tokens.Validate(token) {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	userID, err := s.tokens.ExtractUserID(token)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connectionID := uuid.NewString()
	outlet := newSSEOutlet(w, flusher)

	s.connections.Register(userID, connectionID, outlet)
	defer func() {
		// Closing first: once the handler returns the writer goes back
		// to net/http, so nothing may reach it afterwards.
		outlet.Close()
		s.connections.Unregister(userID, connectionID)
	}()

	hello, _ := json.Marshal(map[string]string{
		"type":         "connected",
		"userId":       userID,
		"connectionId": connectionID,
		"timestamp":    time.Now().UTC().Format(event.TimeLayout),
	})
	if err := outlet.write(hello); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.streamLifetime)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.Info("stream closed", "user_id", userID, "connection_id", connectionID,
			"reason", context.Cause(ctx))
	case <-outlet.done:
		s.log.Info("stream aborted by write failure",
			"user_id", userID, "connection_id", connectionID)
	}
}
