package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"notify-lab/domain/event"
	apperrors "notify-lab/errors"
)

type loginRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ExpiresIn int64  `json:"expiresIn"`
	TokenType string `json:"tokenType"`
}

type publishRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
	Message      string `json:"message" validate:"required"`
}

type broadcastRequest struct {
	Message string `json:"message" validate:"required"`
}

type urgentRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Message      string `json:"message" validate:"required"`
}

type bulkRequest struct {
	TargetUserIDs []string `json:"targetUserIds" validate:"required,min=1,dive,required"`
	Message       string   `json:"message" validate:"required"`
}

// decodeValid decodes the request body and runs struct validation.
func (s *Server) decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

// bearerUserID authenticates the Authorization header and returns the
// caller's user id.
func (s *Server) bearerUserID(r *http.Request) (string, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || !s.tokens.Validate(token) {
		return "", apperrors.ErrInvalidToken
	}
	return s.tokens.ExtractUserID(token)
}

// Demo auth: any non-empty user id gets a token. A production
// deployment replaces this with a real identity check.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeValid(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	token, err := s.tokens.Generate(req.UserID)
	if err != nil {
		s.log.Error("token generation failed", "user_id", req.UserID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.log.Info("login", "user_id", req.UserID)
	s.writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		UserID:    req.UserID,
		ExpiresIn: 3600,
		TokenType: "Bearer",
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	userID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	publisherID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req publishRequest
	if err := s.decodeValid(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "targetUserId and message are required")
		return
	}

	if err := s.publisher.PublishPersonal(r.Context(), req.TargetUserID, req.Message, publisherID); err != nil {
		s.writeError(w, http.StatusBadGateway, "publish failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePublishBroadcast(w http.ResponseWriter, r *http.Request) {
	publisherID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req broadcastRequest
	if err := s.decodeValid(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := s.publisher.PublishBroadcast(r.Context(), req.Message, publisherID); err != nil {
		s.writeError(w, http.StatusBadGateway, "publish failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePublishUrgent(w http.ResponseWriter, r *http.Request) {
	publisherID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req urgentRequest
	if err := s.decodeValid(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "targetUserId, title and message are required")
		return
	}

	target := event.UserTarget(req.TargetUserID)
	if err := s.publisher.PublishUrgent(r.Context(), target, req.Title, req.Message, publisherID); err != nil {
		s.writeError(w, http.StatusBadGateway, "publish failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePublishSystem(w http.ResponseWriter, r *http.Request) {
	publisherID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req broadcastRequest
	if err := s.decodeValid(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := s.publisher.PublishSystem(r.Context(), req.Message, publisherID); err != nil {
		s.writeError(w, http.StatusBadGateway, "publish failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePublishBulk(w http.ResponseWriter, r *http.Request) {
	publisherID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req bulkRequest
	if err := s.decodeValid(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "targetUserIds and message are required")
		return
	}

	success, err := s.publisher.PublishBulkPersonal(r.Context(), req.TargetUserIDs, req.Message, publisherID)
	if err != nil {
		s.log.Warn("bulk publish interrupted", "publisher_id", publisherID, "error", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"success": success,
		"total":   len(req.TargetUserIDs),
	})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	userID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	response, err := s.feed.Poll(r.Context(), userID, r.URL.Query().Get("since"), limit)
	if err != nil {
		s.log.Error("poll failed", "user_id", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "poll failed")
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	userID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	notificationID := mux.Vars(r)["notificationId"]
	notification, err := s.feed.Detail(r.Context(), userID, notificationID)
	if errors.Is(err, apperrors.ErrNotificationGone) {
		s.writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		s.log.Error("detail lookup failed", "notification_id", notificationID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, notification)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := s.bearerUserID(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	notificationID := mux.Vars(r)["notificationId"]
	if err := s.feed.MarkRead(r.Context(), userID, notificationID); err != nil {
		s.log.Error("mark read failed", "notification_id", notificationID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "mark read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.directory.List(s.dispatcher.Participants)
	s.writeJSON(w, http.StatusOK, rooms)
}

type createRoomRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := s.decodeValid(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.directory.CreateRoom(req.Name))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"connections": s.connections.Stats(),
		"relay":       s.subscriber.Stats(),
		"timestamp":   time.Now().UTC().Format(event.TimeLayout),
	})
}

func (s *Server) handleRelayRestart(w http.ResponseWriter, r *http.Request) {
	if _, err := s.bearerUserID(r); err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	s.subscriber.Restart()
	s.writeJSON(w, http.StatusOK, map[string]bool{"restarted": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.broker.Ping(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
