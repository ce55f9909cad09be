package ws

import (
	"time"
)

// activityHistory is how many membership events a room remembers.
const activityHistory = 100

// Activity events recorded by a room.
const (
	ActivityConnected    = "connected"
	ActivityReplaced     = "replaced"
	ActivityDisconnected = "disconnected"
	ActivityPruned       = "pruned"
	ActivityDeclaredDead = "declared_dead"
)

// Activity is a membership change in a room.
type Activity struct {
	At       time.Time `json:"at"`
	Event    string    `json:"event"`
	ClientID string    `json:"clientId"`
	Role     Role      `json:"role"`
}

func (r *Room) record(event string, client *Client) {
	r.activity.Push(Activity{
		At:       r.heartbeat.now(),
		Event:    event,
		ClientID: client.ID(),
		Role:     client.Role(),
	})
}

// Activity returns the most recent membership changes, oldest first.
func (r *Room) Activity() []Activity {
	items := r.activity.Items()
	if items == nil {
		return []Activity{}
	}
	return items
}
