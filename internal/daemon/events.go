package daemon

import "encoding/json"

// Document streams exposed by the daemon. Each stream carries its own
// peer-sync notifications and its own connectivity signal; handlers
// registered for one stream never see the other's events.
const (
	StreamProfile = "profile"
	StreamPost    = "post"
)

// Event names pushed by the daemon.
const (
	EventContentUpdated = "content-updated"
	EventContentReady   = "content-ready"
	EventNeighborStatus = "neighbor-status"
	EventSyncFinished   = "sync-finished"
)

// Content event types.
const (
	InsertLocal  = "local_insert"
	InsertRemote = "remote_insert"
)

// Neighbor event types.
const (
	NeighborUp   = "neighbor_up"
	NeighborDown = "neighbor_down"
)

// Event is a single push notification from the daemon. Payload is the raw
// JSON body; consumers decode it into the typed payloads below.
type Event struct {
	Stream  string          `json:"stream"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ContentPayload announces a document inserted locally or merged from a
// remote peer. Author identifies the entity owner.
type ContentPayload struct {
	Type   string  `json:"type"`
	Key    []int   `json:"key"`
	Author string  `json:"author"`
	From   *string `json:"from,omitempty"`
}

// ContentReadyPayload announces that content for a hash has been fully
// transferred. There is no entity id linkage; this client treats it as
// advisory.
type ContentReadyPayload struct {
	Hash string `json:"hash"`
}

// NeighborPayload announces a peer coming up or going down.
type NeighborPayload struct {
	Type   string `json:"type"`
	NodeID string `json:"node_id"`
}

// SyncPayload announces a completed sync round with a peer.
type SyncPayload struct {
	Origin string `json:"origin"`
}
