package event

import (
	"encoding/json"

	"github.com/c360/meshview/errors"
)

// PositionUpdate carries a node's reported location. Coordinates are
// independently nullable: firmware frequently reports altitude without a
// fix, or a 2D fix without altitude.
type PositionUpdate struct {
	NodeID    string   `json:"node_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Kind returns KindPositionUpdate.
func (e *PositionUpdate) Kind() Kind { return KindPositionUpdate }

// Validate checks identity and coordinate ranges.
func (e *PositionUpdate) Validate() error {
	if e.NodeID == "" {
		return errors.WrapInvalid(errors.ErrMissingNodeID, "PositionUpdate", "Validate", "node id is required")
	}
	if e.Latitude != nil && (*e.Latitude < -90 || *e.Latitude > 90) {
		return errors.WrapInvalid(errors.ErrInvalidEvent, "PositionUpdate", "Validate", "latitude out of range")
	}
	if e.Longitude != nil && (*e.Longitude < -180 || *e.Longitude > 180) {
		return errors.WrapInvalid(errors.ErrInvalidEvent, "PositionUpdate", "Validate", "longitude out of range")
	}
	return nil
}

// MarshalJSON serializes the event.
func (e *PositionUpdate) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias PositionUpdate
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON deserializes the event.
func (e *PositionUpdate) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias PositionUpdate
	return json.Unmarshal(data, (*Alias)(e))
}
