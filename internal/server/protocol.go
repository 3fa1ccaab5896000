package server

import (
	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/syncstore"
)

// Message types sent by the server.
const (
	TypeSnapshot = "snapshot"
	TypeAck      = "ack"
	TypeError    = "error"
)

// Command types accepted from clients.
const (
	CmdUpdate  = "update"
	CmdDelete  = "delete"
	CmdMove    = "move"
	CmdReorder = "reorder"
	CmdCreate  = "create"
)

// Command is a mutation request from a client. Ref is echoed in the reply.
type Command struct {
	Type   string     `json:"type"`
	Ref    string     `json:"ref,omitempty"`
	ID     string     `json:"id,omitempty"`
	Fields doc.Object `json:"fields,omitempty"`
	Status string     `json:"status,omitempty"`
	IDs    []string   `json:"ids,omitempty"`
}

// Snapshot is the merged view of a collection with its sync status. It is
// sent on connect and after every change; a slow client only receives the
// latest one.
type Snapshot struct {
	Type       string                      `json:"type"`
	Collection string                      `json:"collection"`
	Kind       syncstore.ChangeKind        `json:"kind,omitempty"`
	View       []doc.Entity                `json:"view"`
	Statuses   map[string]syncstore.Status `json:"statuses"`
	Overall    syncstore.Status            `json:"overall"`
}

// Reply answers one Command.
type Reply struct {
	Type  string `json:"type"`
	Ref   string `json:"ref,omitempty"`
	ID    string `json:"id,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

func snapshotOf(s *syncstore.Store, kind syncstore.ChangeKind) Snapshot {
	return Snapshot{
		Type:       TypeSnapshot,
		Collection: s.Collection(),
		Kind:       kind,
		View:       s.MergedView(),
		Statuses:   s.Statuses(),
		Overall:    s.OverallStatus(),
	}
}

// snapshotFromChange renders the state a listener was handed.
func snapshotFromChange(collection string, ch syncstore.Change) Snapshot {
	return Snapshot{
		Type:       TypeSnapshot,
		Collection: collection,
		Kind:       ch.Kind,
		View:       ch.View,
		Statuses:   ch.Statuses,
		Overall:    ch.Overall,
	}
}
