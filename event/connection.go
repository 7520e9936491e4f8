package event

import "encoding/json"

// ConnectionStatus signals the device interface gaining or losing its
// radio connection. LocalNodeID is populated on establishment once the
// device has reported its own identity.
type ConnectionStatus struct {
	Connected   bool   `json:"connected"`
	LocalNodeID string `json:"local_node_id,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Kind returns the lifecycle variant matching the connected flag.
func (e *ConnectionStatus) Kind() Kind {
	if e.Connected {
		return KindConnectionEstablished
	}
	return KindConnectionLost
}

// Validate always succeeds; a status event has no required fields.
func (e *ConnectionStatus) Validate() error { return nil }

// MarshalJSON serializes the event.
func (e *ConnectionStatus) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias ConnectionStatus
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON deserializes the event.
func (e *ConnectionStatus) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias ConnectionStatus
	return json.Unmarshal(data, (*Alias)(e))
}
