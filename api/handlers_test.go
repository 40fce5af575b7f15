package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"notify-lab/auth"
	"notify-lab/chat"
	"notify-lab/relay"
	"notify-lab/repositories"
	"notify-lab/runtime"
	"notify-lab/services"
)

type testEnv struct {
	server      *httptest.Server
	redis       *miniredis.Miniredis
	subscriber  *relay.Subscriber
	connections *runtime.ConnectionRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLifetime(t, 30*time.Minute)
}

func newTestEnvWithLifetime(t *testing.T, streamLifetime time.Duration) *testEnv {
	t.Helper()
	log := slog.Default()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	broker := repositories.NewBroker(client, log)
	mailbox := repositories.NewMailbox(client, log, 10, 10*time.Minute)
	reads := repositories.NewReadState(client, log, time.Hour)

	connections := runtime.NewConnectionRegistry(log)
	rooms := runtime.NewRoomRegistry(log)
	directory := chat.NewDirectory(log)
	dispatcher := chat.NewDispatcher(log, rooms, directory)

	publisher := relay.NewPublisher(log, broker, mailbox, services.SampleNames{}, 1000, 1000, 2*time.Second)
	subscriber := relay.NewSubscriber(log, broker, connections, nil)
	feed := services.NewFeedService(log, mailbox, reads, 10)
	tokens := auth.NewTokenService("handler-test-secret", time.Hour)

	srv := NewServer(log, tokens, publisher, subscriber, feed,
		connections, dispatcher, directory, broker, streamLifetime)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, redis: mr, subscriber: subscriber, connections: connections}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) login(t *testing.T, userID string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"userId": userID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHandlers_Login_And_Verify(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	token := env.login(t, "alice")

	resp := env.do(t, http.MethodPost, "/auth/verify", token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	req.Equal("alice", body["userId"])
}

func TestHandlers_Login_Requires_UserID(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_Verify_Rejects_Bad_Token(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/auth/verify", "garbage", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlers_Publish_Then_Poll(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	bobToken := env.login(t, "bob")
	aliceToken := env.login(t, "alice")

	// When bob sends alice a message
	resp := env.do(t, http.MethodPost, "/events", bobToken, map[string]string{
		"targetUserId": "alice", "message": "hello alice",
	})
	req.Equal(http.StatusOK, resp.StatusCode)

	// Then alice's poll sees it, unread
	resp = env.do(t, http.MethodGet, "/notifications/poll", aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	feed := decodeBody[map[string]any](t, resp)
	req.Equal(float64(1), feed["count"])
	notifications := feed["notifications"].([]any)
	first := notifications[0].(map[string]any)
	req.Equal("hello alice", first["message"])
	req.Equal(false, first["read"])
	req.Equal("bob", first["publisherId"])
}

func TestHandlers_Publish_Requires_Token(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/events", "", map[string]string{
		"targetUserId": "alice", "message": "hello",
	})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlers_Broadcast_Reaches_Every_Poll(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	adminToken := env.login(t, "admin")
	aliceToken := env.login(t, "alice")

	resp := env.do(t, http.MethodPost, "/events/broadcast", adminToken, map[string]string{
		"message": "maintenance window tonight",
	})
	req.Equal(http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/notifications/poll", aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	feed := decodeBody[map[string]any](t, resp)
	req.Equal(float64(1), feed["count"])
}

func TestHandlers_Detail_And_MarkRead(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	bobToken := env.login(t, "bob")
	aliceToken := env.login(t, "alice")

	resp := env.do(t, http.MethodPost, "/events", bobToken, map[string]string{
		"targetUserId": "alice", "message": "read me",
	})
	req.Equal(http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/notifications/poll", aliceToken, nil)
	feed := decodeBody[map[string]any](t, resp)
	first := feed["notifications"].([]any)[0].(map[string]any)
	id := first["id"].(string)

	// When alice acknowledges it
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/notifications/%s/read", id), aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	// Then the detail shows it as read
	resp = env.do(t, http.MethodGet, "/notifications/"+id, aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	detail := decodeBody[map[string]any](t, resp)
	req.Equal("read me", detail["message"])
	req.Equal(true, detail["read"])
}

func TestHandlers_Detail_Unknown_Is_NotFound(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	token := env.login(t, "alice")

	resp := env.do(t, http.MethodGet, "/notifications/evt_missing", token, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestHandlers_Bulk_Publish_Reports_Counts(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	token := env.login(t, "admin")

	resp := env.do(t, http.MethodPost, "/events/bulk", token, map[string]any{
		"targetUserIds": []string{"alice", "bob"}, "message": "batch",
	})
	req.Equal(http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]int](t, resp)
	req.Equal(2, body["success"])
	req.Equal(2, body["total"])
}

func TestHandlers_Rooms_List_And_Create(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/chat/rooms", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	rooms := decodeBody[[]map[string]any](t, resp)
	req.Len(rooms, 2)

	resp = env.do(t, http.MethodPost, "/api/chat/rooms", "", map[string]string{"name": "Cherry group buy"})
	req.Equal(http.StatusOK, resp.StatusCode)
	created := decodeBody[map[string]any](t, resp)
	req.Equal("Cherry group buy", created["name"])

	resp = env.do(t, http.MethodGet, "/api/chat/rooms", "", nil)
	rooms = decodeBody[[]map[string]any](t, resp)
	req.Len(rooms, 3)
}

func TestHandlers_Stats(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/stats", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	req.Contains(body, "connections")
	req.Contains(body, "relay")
}

func TestHandlers_Health_Reflects_Redis(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	env.redis.Close()

	resp = env.do(t, http.MethodGet, "/healthz", "", nil)
	req.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}
