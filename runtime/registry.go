// Package runtime holds the per-process registries: live notification
// connections and chat room membership. Nothing here is visible to
// other instances.
package runtime

import (
	"hash/fnv"
	"log/slog"
	"sync"

	"notify-lab/contract"
	"notify-lab/domain/event"
)

const connectionShards = 32

// ConnectionStats is a snapshot of the local connection state.
type ConnectionStats struct {
	TotalConnections int            `json:"totalConnections"`
	ConnectedUsers   int            `json:"connectedUsers"`
	UserConnections  map[string]int `json:"userConnections"`
}

type connectionShard struct {
	mu    sync.RWMutex
	users map[string]map[string]contract.Outlet // userID -> connectionID -> outlet
}

// ConnectionRegistry maps user ids to their live outlets. Shards keyed
// by user id keep operations on different users from contending.
// The invariant throughout: a user key exists iff the user has at least
// one outlet, so connection churn cannot leak empty entries.
type ConnectionRegistry struct {
	log    *slog.Logger
	shards [connectionShards]*connectionShard
}

func NewConnectionRegistry(log *slog.Logger) *ConnectionRegistry {
	r := &ConnectionRegistry{log: log}
	for i := range r.shards {
		r.shards[i] = &connectionShard{users: make(map[string]map[string]contract.Outlet)}
	}
	return r
}

func (r *ConnectionRegistry) shard(userID string) *connectionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%connectionShards]
}

// Register adds an outlet under userID.
func (r *ConnectionRegistry) Register(userID, connectionID string, out contract.Outlet) {
	s := r.shard(userID)
	s.mu.Lock()
	conns, ok := s.users[userID]
	if !ok {
		conns = make(map[string]contract.Outlet)
		s.users[userID] = conns
	}
	conns[connectionID] = out
	s.mu.Unlock()

	r.log.Info("connection registered",
		"user_id", userID, "connection_id", connectionID)
}

// Unregister removes an outlet, dropping the user key when it was the
// last one. Unknown ids are a no-op so every teardown path (completion,
// timeout, transport error) can converge here safely.
func (r *ConnectionRegistry) Unregister(userID, connectionID string) {
	s := r.shard(userID)
	s.mu.Lock()
	if conns, ok := s.users[userID]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(s.users, userID)
		}
	}
	s.mu.Unlock()

	r.log.Info("connection unregistered",
		"user_id", userID, "connection_id", connectionID)
}

// SendToUser attempts delivery to every outlet of userID and returns
// how many sends succeeded. An outlet whose send fails is pruned; there
// is no retry, a failed send is treated as a dead connection.
func (r *ConnectionRegistry) SendToUser(userID string, e event.Event) int {
	s := r.shard(userID)

	s.mu.RLock()
	conns := s.users[userID]
	snapshot := make(map[string]contract.Outlet, len(conns))
	for id, out := range conns {
		snapshot[id] = out
	}
	s.mu.RUnlock()

	if len(snapshot) == 0 {
		return 0
	}

	sent := 0
	var failed []string
	for id, out := range snapshot {
		if err := out.Send(e); err != nil {
			r.log.Warn("send failed, pruning connection",
				"user_id", userID, "connection_id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		sent++
	}

	for _, id := range failed {
		r.Unregister(userID, id)
	}
	return sent
}

// BroadcastToAllLocal sends e to every locally registered user and
// returns the number of users with at least one successful send.
// The user set is snapshotted up front: users present throughout are
// never skipped, users registered mid-broadcast may or may not receive.
func (r *ConnectionRegistry) BroadcastToAllLocal(e event.Event) int {
	var userIDs []string
	for _, s := range r.shards {
		s.mu.RLock()
		for userID := range s.users {
			userIDs = append(userIDs, userID)
		}
		s.mu.RUnlock()
	}

	reached := 0
	for _, userID := range userIDs {
		if r.SendToUser(userID, e) > 0 {
			reached++
		}
	}

	r.log.Info("local broadcast done",
		"event_id", e.ID, "targets", len(userIDs), "reached", reached)
	return reached
}

// Stats snapshots the registry for the admin surface.
func (r *ConnectionRegistry) Stats() ConnectionStats {
	stats := ConnectionStats{UserConnections: make(map[string]int)}
	for _, s := range r.shards {
		s.mu.RLock()
		for userID, conns := range s.users {
			stats.UserConnections[userID] = len(conns)
			stats.TotalConnections += len(conns)
			stats.ConnectedUsers++
		}
		s.mu.RUnlock()
	}
	return stats
}
