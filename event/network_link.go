package event

import (
	"encoding/json"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// NetworkLink is a single routing observation between an ordered node
// pair. Links are inferred from packet reception, never signaled by the
// protocol, so each event is one sample for the link's rolling statistics.
type NetworkLink struct {
	FromID    string         `json:"from_id"`
	ToID      string         `json:"to_id"`
	RSSI      *int           `json:"rssi,omitempty"`
	SNR       *float64       `json:"snr,omitempty"`
	HopCount  model.HopCount `json:"hop_count"`
	Timestamp int64          `json:"timestamp"`
}

// Kind returns KindNetworkLink.
func (e *NetworkLink) Kind() Kind { return KindNetworkLink }

// Validate checks both endpoints are present and distinct.
func (e *NetworkLink) Validate() error {
	if e.FromID == "" || e.ToID == "" {
		return errors.WrapInvalid(errors.ErrMissingNodeID, "NetworkLink", "Validate", "both endpoints are required")
	}
	if e.FromID == e.ToID {
		return errors.WrapInvalid(errors.ErrInvalidEvent, "NetworkLink", "Validate", "link endpoints must differ")
	}
	return nil
}

// Observation converts the event into one link statistics sample.
func (e *NetworkLink) Observation() model.LinkObservation {
	return model.LinkObservation{
		RSSI:     e.RSSI,
		SNR:      e.SNR,
		HopCount: e.HopCount,
		SeenAt:   e.Timestamp,
	}
}

// MarshalJSON serializes the event.
func (e *NetworkLink) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias NetworkLink
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON deserializes the event.
func (e *NetworkLink) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias NetworkLink
	return json.Unmarshal(data, (*Alias)(e))
}
