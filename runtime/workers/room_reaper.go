package workers

import (
	"context"
	"log/slog"
	"time"

	"notify-lab/chat"
	"notify-lab/runtime"
)

// RoomReaper periodically evicts rooms that have been idle and empty
// for longer than maxIdle.
type RoomReaper struct {
	log       *slog.Logger
	directory *chat.Directory
	rooms     *runtime.RoomRegistry
	interval  time.Duration
	maxIdle   time.Duration
}

func NewRoomReaper(log *slog.Logger, directory *chat.Directory, rooms *runtime.RoomRegistry,
	interval, maxIdle time.Duration) *RoomReaper {
	return &RoomReaper{log: log, directory: directory, rooms: rooms, interval: interval, maxIdle: maxIdle}
}

func (w *RoomReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping room reaper")
			return nil
		case <-ticker.C:
			w.directory.EvictIdle(w.maxIdle, w.rooms.Participants)
		}
	}
}
