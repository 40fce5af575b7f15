package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notify-lab/domain/chat"
	"notify-lab/runtime"
)

type memoryOutlet struct {
	mu       sync.Mutex
	closed   bool
	received []chat.Message
}

func (o *memoryOutlet) Send(m chat.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received = append(o.received, m)
	return nil
}

func (o *memoryOutlet) Open() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.closed
}

func (o *memoryOutlet) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *memoryOutlet) messages() []chat.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]chat.Message(nil), o.received...)
}

func (o *memoryOutlet) last(t *testing.T) chat.Message {
	t.Helper()
	msgs := o.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	log := slog.Default()
	return NewDispatcher(log, runtime.NewRoomRegistry(log), NewDirectory(log))
}

func raw(t *testing.T, m chat.Message) []byte {
	t.Helper()
	payload, err := json.Marshal(m)
	require.NoError(t, err)
	return payload
}

func joinRoom(t *testing.T, d *Dispatcher, s *chat.Session, roomID, sender string) {
	t.Helper()
	d.HandleRaw(s, raw(t, chat.Message{Type: chat.MessageJoin, RoomID: roomID, Sender: sender}))
}

func TestDispatcher_Join_Announces_To_Room(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut, bobOut := &memoryOutlet{}, &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	bob := chat.NewSession("s2", bobOut)

	// Given alice alone in the room
	joinRoom(t, d, alice, "room1", "alice")

	// When bob joins
	joinRoom(t, d, bob, "room1", "bob")

	// Then both members see the join announcement
	req.Equal(2, d.Participants("room1"))
	announcement := aliceOut.last(t)
	req.Equal(chat.MessageJoin, announcement.Type)
	req.Equal("bob", announcement.Sender)
	req.Equal("bob joined the room", announcement.Message)
	req.Equal(announcement, bobOut.last(t))
	req.Equal("room1", bob.RoomID())
}

func TestDispatcher_Chat_Reaches_Every_Member(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut, bobOut := &memoryOutlet{}, &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	bob := chat.NewSession("s2", bobOut)
	joinRoom(t, d, alice, "room1", "alice")
	joinRoom(t, d, bob, "room1", "bob")

	// When alice speaks
	d.HandleRaw(alice, raw(t, chat.Message{
		Type: chat.MessageChat, RoomID: "room1", Sender: "alice", Message: "hello",
	}))

	// Then the message arrives verbatim, with a server timestamp
	got := bobOut.last(t)
	req.Equal(chat.MessageChat, got.Type)
	req.Equal("alice", got.Sender)
	req.Equal("hello", got.Message)
	_, err := time.Parse(chat.TimeLayout, got.Timestamp)
	req.NoError(err)
	req.Equal(got, aliceOut.last(t))
}

func TestDispatcher_Chat_Does_Not_Cross_Rooms(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut, bobOut := &memoryOutlet{}, &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	bob := chat.NewSession("s2", bobOut)
	joinRoom(t, d, alice, "room1", "alice")
	joinRoom(t, d, bob, "room2", "bob")
	bobBefore := len(bobOut.messages())

	d.HandleRaw(alice, raw(t, chat.Message{
		Type: chat.MessageChat, RoomID: "room1", Sender: "alice", Message: "hello",
	}))

	req.Len(bobOut.messages(), bobBefore)
}

func TestDispatcher_Leave_Announces_Departure(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut, bobOut := &memoryOutlet{}, &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	bob := chat.NewSession("s2", bobOut)
	joinRoom(t, d, alice, "room1", "alice")
	joinRoom(t, d, bob, "room1", "bob")

	// When bob sends LEAVE
	d.HandleRaw(bob, raw(t, chat.Message{Type: chat.MessageLeave, RoomID: "room1", Sender: "bob"}))

	// Then alice sees the departure and bob is out
	departure := aliceOut.last(t)
	req.Equal(chat.MessageLeave, departure.Type)
	req.Equal("bob left the room", departure.Message)
	req.Equal(1, d.Participants("room1"))
	req.Empty(bob.RoomID())
}

func TestDispatcher_Disconnect_Without_Membership_Is_Silent(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut := &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	joinRoom(t, d, alice, "room1", "alice")
	before := len(aliceOut.messages())

	// A session that never joined disconnects
	stranger := chat.NewSession("s2", &memoryOutlet{})
	d.Disconnect(stranger)

	req.Len(aliceOut.messages(), before)
}

func TestDispatcher_Rejoin_Leaves_Previous_Room(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut, bobOut := &memoryOutlet{}, &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	bob := chat.NewSession("s2", bobOut)
	joinRoom(t, d, alice, "room1", "alice")
	joinRoom(t, d, bob, "room1", "bob")

	// When bob joins another room
	joinRoom(t, d, bob, "room2", "bob")

	// Then room1 sees the departure and bob is only in room2
	departure := aliceOut.last(t)
	req.Equal(chat.MessageLeave, departure.Type)
	req.Equal("bob", departure.Sender)
	req.Equal(1, d.Participants("room1"))
	req.Equal(1, d.Participants("room2"))
	req.Equal("room2", bob.RoomID())
}

func TestDispatcher_Closed_Sessions_Are_Pruned(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut, bobOut := &memoryOutlet{}, &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	bob := chat.NewSession("s2", bobOut)
	joinRoom(t, d, alice, "room1", "alice")
	joinRoom(t, d, bob, "room1", "bob")

	// Given bob's transport died without a LEAVE
	bobOut.Close()
	bobBefore := len(bobOut.messages())

	d.HandleRaw(alice, raw(t, chat.Message{
		Type: chat.MessageChat, RoomID: "room1", Sender: "alice", Message: "anyone there?",
	}))

	// Then bob got nothing and is no longer a member
	req.Len(bobOut.messages(), bobBefore)
	req.Equal(1, d.Participants("room1"))
	req.Equal("anyone there?", aliceOut.last(t).Message)
}

func TestDispatcher_Malformed_Payload_Is_Dropped(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t)
	aliceOut := &memoryOutlet{}
	alice := chat.NewSession("s1", aliceOut)
	joinRoom(t, d, alice, "room1", "alice")
	before := len(aliceOut.messages())

	d.HandleRaw(alice, []byte("{not json"))

	req.Len(aliceOut.messages(), before)
	req.Equal(1, d.Participants("room1"))
}

func TestDirectory_List_And_Create(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(slog.Default())

	rooms := directory.List(func(string) int { return 0 })
	req.Len(rooms, 2)

	created := directory.CreateRoom("Cherry group buy")
	req.NotEmpty(created.ID)
	req.Equal("Cherry group buy", created.Name)

	rooms = directory.List(func(string) int { return 3 })
	req.Len(rooms, 3)
	req.Equal(3, rooms[0].Participants)
}

func TestDirectory_EvictIdle_Spares_Active_And_Occupied(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(slog.Default())
	directory.EnsureRoom("idle-empty")
	directory.EnsureRoom("idle-occupied")
	directory.EnsureRoom("active")

	// Everything ages past the idle cutoff, then one room sees traffic
	directory.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	directory.Touch("active")

	occupants := map[string]int{"idle-occupied": 1}
	evicted := directory.EvictIdle(time.Hour, func(roomID string) int { return occupants[roomID] })

	// The seeded rooms idle out with the rest; only empty idle rooms go
	req.ElementsMatch([]string{"idle-empty", "room1", "room2"}, evicted)
	req.Len(directory.List(func(string) int { return 0 }), 2)
}
