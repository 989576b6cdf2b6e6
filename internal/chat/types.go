package chat

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Subscription.Next once the room feed has ended.
var ErrClosed = errors.New("room closed")

// LagError reports entries a subscriber missed because they were overwritten
// before it read them.
type LagError struct {
	Room   string
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("Dropped %d messages from %s.", e.Missed, e.Room)
}

// RoomStats is a point-in-time view of one room.
type RoomStats struct {
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
}
