package event

import (
	"encoding/json"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// GenericPacket is the catch-all variant for packet types the pipeline
// does not interpret. It is persisted for forensic value and never
// mutates live state. The payload holds only JSON-safe scalars; nested
// structures are stringified at normalization time.
type GenericPacket struct {
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	PacketType string         `json:"packet_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	RSSI       *int           `json:"rssi,omitempty"`
	SNR        *float64       `json:"snr,omitempty"`
	HopCount   model.HopCount `json:"hop_count"`
	Channel    int            `json:"channel"`
	Timestamp  int64          `json:"timestamp"`
}

// Kind returns KindGenericPacket.
func (e *GenericPacket) Kind() Kind { return KindGenericPacket }

// Validate checks the packet has a source.
func (e *GenericPacket) Validate() error {
	if e.FromID == "" {
		return errors.WrapInvalid(errors.ErrMissingNodeID, "GenericPacket", "Validate", "source id is required")
	}
	return nil
}

// Model converts the event into its persistence shape.
func (e *GenericPacket) Model() model.MeshPacket {
	return model.MeshPacket{
		FromID:     e.FromID,
		ToID:       e.ToID,
		PacketType: e.PacketType,
		Payload:    e.Payload,
		RSSI:       e.RSSI,
		SNR:        e.SNR,
		HopCount:   e.HopCount,
		Channel:    e.Channel,
		Timestamp:  e.Timestamp,
	}
}

// MarshalJSON serializes the event.
func (e *GenericPacket) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias GenericPacket
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON deserializes the event.
func (e *GenericPacket) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias GenericPacket
	return json.Unmarshal(data, (*Alias)(e))
}
