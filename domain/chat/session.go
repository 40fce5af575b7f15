package chat

import "sync"

// Outlet is the push side of a chat transport connection.
type Outlet interface {
	Send(m Message) error
	Open() bool
}

// Session is a transport-level connection bound to at most one room and
// one display name at a time. The dispatcher owns the room/name fields;
// the transport handler owns the outlet.
type Session struct {
	ID string

	mu          sync.Mutex
	displayName string
	roomID      string
	out         Outlet
}

func NewSession(id string, out Outlet) *Session {
	return &Session{ID: id, out: out}
}

func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Bind records the room and display name after a successful join.
func (s *Session) Bind(roomID, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.displayName = displayName
}

// ClearRoom drops the room binding, keeping the display name.
func (s *Session) ClearRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = ""
}

func (s *Session) Send(m Message) error {
	return s.out.Send(m)
}

func (s *Session) Open() bool {
	return s.out.Open()
}
