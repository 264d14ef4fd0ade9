package goPortal

import (
	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/session"
)

// Value types of the portal API re-exported for callers of the root
// package.
type (
	User           = model.User
	Credentials    = model.Credentials
	Registration   = model.Registration
	TokenResponse  = model.TokenResponse
	ProfileUpdate  = model.ProfileUpdate
	PasswordChange = model.PasswordChange
	Upload         = model.Upload
)

// Session is the persisted session as held by a Client.
type Session = session.Session

// SyncType names the identity change carried by a sync message.
type SyncType = session.SyncType

const (
	SyncLogin  = session.SyncLogin
	SyncLogout = session.SyncLogout
	SyncUpdate = session.SyncUpdate
)
