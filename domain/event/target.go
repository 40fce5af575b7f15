package event

import (
	"encoding/json"

	apperrors "notify-lab/errors"
)

// wireBroadcast is the reserved value the wire format uses for
// broadcast targets. It never leaks outside (un)marshalling.
const wireBroadcast = "all"

// Target is the destination of an event: either a single user or a
// broadcast to everyone. Using a variant type instead of a sentinel
// string means a user who happens to be named "all" cannot turn a
// personal message into a broadcast inside the process.
type Target struct {
	userID    string
	broadcast bool
}

// UserTarget addresses a single user.
func UserTarget(userID string) Target {
	return Target{userID: userID}
}

// BroadcastTarget addresses every user.
func BroadcastTarget() Target {
	return Target{broadcast: true}
}

func (t Target) IsBroadcast() bool {
	return t.broadcast
}

// UserID returns the addressed user, or the empty string for a broadcast.
func (t Target) UserID() string {
	if t.broadcast {
		return ""
	}
	return t.userID
}

// String returns the wire representation of the target.
func (t Target) String() string {
	if t.broadcast {
		return wireBroadcast
	}
	return t.userID
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		return apperrors.ErrEmptyTarget
	}
	if raw == wireBroadcast {
		*t = BroadcastTarget()
		return nil
	}
	*t = UserTarget(raw)
	return nil
}
