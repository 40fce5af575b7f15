package runtime

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"notify-lab/domain/chat"
)

type nopOutlet struct{}

func (nopOutlet) Send(chat.Message) error { return nil }
func (nopOutlet) Open() bool              { return true }

func TestRoomRegistry_Join_And_Leave(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default())
	session := chat.NewSession(uuid.NewString(), nopOutlet{})

	// Given an empty registry
	req.Zero(registry.Participants("r1"))

	// When a session joins
	registry.Join("r1", session)

	// Then it is a member
	req.Equal(1, registry.Participants("r1"))
	req.Contains(registry.Snapshot("r1"), session)

	// When it leaves
	req.True(registry.Leave("r1", session))

	// Then the room entry is gone
	req.Zero(registry.Participants("r1"))
	req.Nil(registry.Snapshot("r1"))
}

func TestRoomRegistry_Leave_Not_A_Member(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default())
	member := chat.NewSession(uuid.NewString(), nopOutlet{})
	stranger := chat.NewSession(uuid.NewString(), nopOutlet{})

	registry.Join("r1", member)

	req.False(registry.Leave("r1", stranger))
	req.False(registry.Leave("unknown-room", member))
	req.Equal(1, registry.Participants("r1"))
}

func TestRoomRegistry_RemoveEverywhere_Is_Defensive(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default())
	session := chat.NewSession(uuid.NewString(), nopOutlet{})
	other := chat.NewSession(uuid.NewString(), nopOutlet{})

	// Given a session that somehow ended up in two rooms
	registry.Join("r1", session)
	registry.Join("r2", session)
	registry.Join("r2", other)

	// When sweeping it out
	left := registry.RemoveEverywhere(session)

	// Then both memberships are reported and removed
	req.ElementsMatch([]string{"r1", "r2"}, left)
	req.Zero(registry.Participants("r1"))
	req.Equal(1, registry.Participants("r2"))

	// And sweeping again is a no-op
	req.Empty(registry.RemoveEverywhere(session))
}

func TestRoomRegistry_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default())
	session := chat.NewSession(uuid.NewString(), nopOutlet{})

	registry.Join("r1", session)
	snapshot := registry.Snapshot("r1")

	// Mutating the registry after the snapshot does not disturb it
	registry.Leave("r1", session)
	req.Len(snapshot, 1)
}
