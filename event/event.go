// Package event defines the closed set of typed events flowing through the
// reconciliation pipeline and the normalizer that produces them from raw
// decoded device records.
package event

import "encoding/json"

// Kind tags an event with its variant. The set is closed: anything the
// normalizer does not recognize becomes KindGenericPacket.
type Kind string

const (
	KindNodeInfo       Kind = "node_info"
	KindTextMessage    Kind = "text_message"
	KindPositionUpdate Kind = "position_update"
	KindTelemetry      Kind = "telemetry"
	KindNetworkLink    Kind = "network_link"
	KindGenericPacket  Kind = "mesh_packet"

	// Connection lifecycle signals from the device interface. They carry no
	// mesh payload and never touch live state.
	KindConnectionEstablished Kind = "connection_established"
	KindConnectionLost        Kind = "connection_lost"
)

// String returns the wire name of the kind.
func (k Kind) String() string { return string(k) }

// Event is the tagged-union interface implemented by every event variant.
// All variants carry explicit optional fields (pointers for nullable
// values) so that absent data is distinguishable from zero values.
type Event interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Validate checks required fields are present and values are in range.
	Validate() error

	json.Marshaler
	json.Unmarshaler
}
