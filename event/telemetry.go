package event

import (
	"encoding/json"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// Telemetry reports device and environment metrics for a node. Every
// metric is optional; an event may carry only a battery reading or only
// an environment sample.
type Telemetry struct {
	NodeID string `json:"node_id"`

	// Device metrics.
	BatteryLevel  *int     `json:"battery_level,omitempty"`
	Voltage       *float64 `json:"voltage,omitempty"`
	ChannelUtil   *float64 `json:"channel_utilization,omitempty"`
	AirUtilTx     *float64 `json:"air_util_tx,omitempty"`
	UptimeSeconds *int64   `json:"uptime_seconds,omitempty"`

	// Environment metrics.
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`

	// Reception context.
	RSSI     *int           `json:"rssi,omitempty"`
	SNR      *float64       `json:"snr,omitempty"`
	HopCount model.HopCount `json:"hop_count"`

	Timestamp int64 `json:"timestamp"`
}

// Kind returns KindTelemetry.
func (e *Telemetry) Kind() Kind { return KindTelemetry }

// Validate checks the telemetry is attributable to a node.
func (e *Telemetry) Validate() error {
	if e.NodeID == "" {
		return errors.WrapInvalid(errors.ErrMissingNodeID, "Telemetry", "Validate", "node id is required")
	}
	if e.BatteryLevel != nil && (*e.BatteryLevel < 0 || *e.BatteryLevel > 101) {
		return errors.WrapInvalid(errors.ErrInvalidEvent, "Telemetry", "Validate", "battery level out of range")
	}
	return nil
}

// Merge builds the partial node record this telemetry contributes.
func (e *Telemetry) Merge() model.Node {
	n := model.Node{
		ID:            e.NodeID,
		BatteryLevel:  e.BatteryLevel,
		Voltage:       e.Voltage,
		ChannelUtil:   e.ChannelUtil,
		AirUtilTx:     e.AirUtilTx,
		UptimeSeconds: e.UptimeSeconds,
		Temperature:   e.Temperature,
		Humidity:      e.Humidity,
		Pressure:      e.Pressure,
		RSSI:          e.RSSI,
		SNR:           e.SNR,
		HopCount:      e.HopCount,
		LastHeard:     e.Timestamp,
	}
	if e.RSSI != nil {
		n.SignalQuality = model.QualityFromRSSI(*e.RSSI)
	}
	return n
}

// MarshalJSON serializes the event.
func (e *Telemetry) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Telemetry
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON deserializes the event.
func (e *Telemetry) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Telemetry
	return json.Unmarshal(data, (*Alias)(e))
}
