package session

import (
	"context"
	"time"

	"github.com/MrEthical07/goPortal/model"
)

// SyncType names an identity change announced to other instances.
type SyncType string

const (
	SyncLogin  SyncType = "login"
	SyncLogout SyncType = "logout"
	SyncUpdate SyncType = "update"
)

// SyncMessage is broadcast after login, logout and profile updates so
// other clients sharing the same store can follow along.
type SyncMessage struct {
	Origin string      `json:"origin"`
	Type   SyncType    `json:"type"`
	User   *model.User `json:"user,omitempty"`
	At     time.Time   `json:"at"`
}

// Broadcaster is implemented by stores that can fan identity changes out
// to every client sharing them.
type Broadcaster interface {
	Publish(ctx context.Context, msg SyncMessage) error
	// Subscribe returns a channel of messages and a cancel func that
	// closes it. Messages from every origin are delivered, including the
	// subscriber's own.
	Subscribe(ctx context.Context) (<-chan SyncMessage, func(), error)
}
