// Package api wires the HTTP surface: auth, event publishing, the SSE
// stream, polling, the chat WebSocket and the admin endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notify-lab/auth"
	"notify-lab/chat"
	"notify-lab/contract"
	"notify-lab/relay"
	"notify-lab/runtime"
	"notify-lab/services"
)

// Server holds the handlers' collaborators.
type Server struct {
	log            *slog.Logger
	router         *mux.Router
	tokens         *auth.TokenService
	publisher      *relay.Publisher
	subscriber     *relay.Subscriber
	feed           *services.FeedService
	connections    *runtime.ConnectionRegistry
	dispatcher     *chat.Dispatcher
	directory      *chat.Directory
	broker         contract.IBroker
	validate       *validator.Validate
	upgrader       websocket.Upgrader
	streamLifetime time.Duration
}

func NewServer(log *slog.Logger, tokens *auth.TokenService, publisher *relay.Publisher,
	subscriber *relay.Subscriber, feed *services.FeedService,
	connections *runtime.ConnectionRegistry, dispatcher *chat.Dispatcher,
	directory *chat.Directory, broker contract.IBroker, streamLifetime time.Duration) *Server {

	s := &Server{
		log:            log,
		router:         mux.NewRouter(),
		tokens:         tokens,
		publisher:      publisher,
		subscriber:     subscriber,
		feed:           feed,
		connections:    connections,
		dispatcher:     dispatcher,
		directory:      directory,
		broker:         broker,
		validate:       validator.New(),
		upgrader:       websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		streamLifetime: streamLifetime,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/verify", s.handleVerify).Methods(http.MethodPost)

	s.router.HandleFunc("/events", s.handlePublish).Methods(http.MethodPost)
	s.router.HandleFunc("/events/broadcast", s.handlePublishBroadcast).Methods(http.MethodPost)
	s.router.HandleFunc("/events/urgent", s.handlePublishUrgent).Methods(http.MethodPost)
	s.router.HandleFunc("/events/system", s.handlePublishSystem).Methods(http.MethodPost)
	s.router.HandleFunc("/events/bulk", s.handlePublishBulk).Methods(http.MethodPost)

	s.router.HandleFunc("/notifications/stream", s.handleStream).Methods(http.MethodGet)
	s.router.HandleFunc("/notifications/poll", s.handlePoll).Methods(http.MethodGet)
	s.router.HandleFunc("/notifications/{notificationId}", s.handleDetail).Methods(http.MethodGet)
	s.router.HandleFunc("/notifications/{notificationId}/read", s.handleMarkRead).Methods(http.MethodPost)

	s.router.HandleFunc("/api/chat/rooms", s.handleListRooms).Methods(http.MethodGet)
	s.router.HandleFunc("/api/chat/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleChatSocket).Methods(http.MethodGet)

	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/admin/relay/restart", s.handleRelayRestart).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
