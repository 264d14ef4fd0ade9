// Package model holds the wire types exchanged with the portal REST API.
//
// Types here are plain values: they carry JSON tags matching the API and
// small helpers (role checks, page metadata) but no I/O.
package model
