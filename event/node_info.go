package event

import (
	"encoding/json"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// NodeInfo announces a node's identity and static attributes. It is the
// only event that can introduce a fully described node into live state.
type NodeInfo struct {
	Node      model.Node `json:"node"`
	Timestamp int64      `json:"timestamp"`
}

// Kind returns KindNodeInfo.
func (e *NodeInfo) Kind() Kind { return KindNodeInfo }

// Validate checks the node carries a usable identity.
func (e *NodeInfo) Validate() error {
	if e.Node.ID == "" {
		return errors.WrapInvalid(errors.ErrMissingNodeID, "NodeInfo", "Validate", "node id is required")
	}
	if e.Node.ID == model.BroadcastID {
		return errors.WrapInvalid(errors.ErrInvalidEvent, "NodeInfo", "Validate", "broadcast cannot announce node info")
	}
	return nil
}

// MarshalJSON serializes the event.
func (e *NodeInfo) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias NodeInfo
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON deserializes the event.
func (e *NodeInfo) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias NodeInfo
	return json.Unmarshal(data, (*Alias)(e))
}
